package memory

import (
	"testing"
	"time"

	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_MessageOperations(t *testing.T) {
	store := NewStore()

	message := &domain.Message{
		ID:      "msg-1",
		From:    "sender@example.com",
		To:      []string{"me@example.com"},
		Subject: "Test Message",
		Text:    "This is a test message",
		Date:    time.Now(),
		Source:  "smtp",
	}

	err := store.SaveMessage(message)
	require.NoError(t, err)

	// Test GetMessage
	retrieved, err := store.GetMessage("msg-1")
	require.NoError(t, err)
	assert.Equal(t, message.Subject, retrieved.Subject)
	assert.Equal(t, message.From, retrieved.From)
	assert.False(t, retrieved.CreatedAt.IsZero())

	// Test ListMessages
	messages, err := store.ListMessages(10)
	require.NoError(t, err)
	assert.Len(t, messages, 1)

	// Test MarkMessageRead
	err = store.MarkMessageRead("msg-1")
	require.NoError(t, err)

	retrieved, err = store.GetMessage("msg-1")
	require.NoError(t, err)
	assert.True(t, retrieved.IsRead)

	// Unknown IDs return the sentinel error.
	_, err = store.GetMessage("missing")
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)
	assert.ErrorIs(t, store.MarkMessageRead("missing"), storage.ErrMessageNotFound)
}

func TestMemoryStore_ListMessagesNewestFirst(t *testing.T) {
	store := NewStore()

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		err := store.SaveMessage(&domain.Message{
			ID:   id,
			Date: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	messages, err := store.ListMessages(2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "new", messages[0].ID)
	assert.Equal(t, "mid", messages[1].ID)
}

func TestMemoryStore_ClassificationVersions(t *testing.T) {
	store := NewStore()

	// First save gets version 1.
	first := &domain.Classification{ID: "c-1", MessageID: "msg-1", Intent: "question"}
	require.NoError(t, store.SaveClassification(first))
	assert.Equal(t, 1, first.Version)

	// Re-analysis appends version 2 instead of overwriting.
	second := &domain.Classification{ID: "c-2", MessageID: "msg-1", Intent: "complaint"}
	require.NoError(t, store.SaveClassification(second))
	assert.Equal(t, 2, second.Version)

	latest, err := store.GetLatestClassification("msg-1")
	require.NoError(t, err)
	assert.Equal(t, "c-2", latest.ID)
	assert.Equal(t, 2, latest.Version)

	versions, err := store.ListClassifications("msg-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)

	// Explicit duplicate version is rejected.
	dup := &domain.Classification{ID: "c-3", MessageID: "msg-1", Version: 2}
	assert.ErrorIs(t, store.SaveClassification(dup), storage.ErrVersionConflict)

	_, err = store.GetLatestClassification("missing")
	assert.ErrorIs(t, err, storage.ErrClassificationNotFound)
}

func TestMemoryStore_ExtractionUpsert(t *testing.T) {
	store := NewStore()

	extraction := &domain.NewsletterExtraction{ID: "e-1", MessageID: "msg-1", Title: "First"}
	require.NoError(t, store.SaveExtraction(extraction))

	// Saving again for the same message replaces the record.
	updated := &domain.NewsletterExtraction{ID: "e-2", MessageID: "msg-1", Title: "Second"}
	require.NoError(t, store.SaveExtraction(updated))

	got, err := store.GetExtraction("msg-1")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Title)

	_, err = store.GetExtraction("missing")
	assert.ErrorIs(t, err, storage.ErrExtractionNotFound)
}

func TestMemoryStore_ScheduledPosts(t *testing.T) {
	store := NewStore()
	now := time.Now()

	save := func(id string, status domain.PostStatus, at *time.Time) {
		require.NoError(t, store.SavePublishResult(&domain.PublishResult{
			ID:          id,
			Platform:    "twitter",
			Content:     "post " + id,
			Status:      status,
			ScheduledAt: at,
		}))
	}

	early := now.Add(-2 * time.Hour)
	late := now.Add(-1 * time.Hour)
	future := now.Add(time.Hour)

	save("due-late", domain.PostStatusScheduled, &late)
	save("due-early", domain.PostStatusScheduled, &early)
	save("not-due", domain.PostStatusScheduled, &future)
	save("posted", domain.PostStatusPosted, &early)

	due, err := store.ListDueScheduledPosts(now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	// Ordered by schedule time, earliest first.
	assert.Equal(t, "due-early", due[0].ID)
	assert.Equal(t, "due-late", due[1].ID)

	// Resolving flips the record to its terminal state exactly once.
	err = store.ResolveScheduledPost("due-early", domain.PostStatusPosted, "p-1", "https://x/p/1", "", now)
	require.NoError(t, err)

	got, err := store.GetPublishResult("due-early")
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusPosted, got.Status)
	assert.Equal(t, "p-1", got.PostID)
	require.NotNil(t, got.PostedAt)

	// Second resolution attempt is rejected.
	err = store.ResolveScheduledPost("due-early", domain.PostStatusPosted, "p-1", "", "", now)
	assert.ErrorIs(t, err, storage.ErrAlreadyResolved)

	err = store.ResolveScheduledPost("missing", domain.PostStatusPosted, "", "", "", now)
	assert.ErrorIs(t, err, storage.ErrPublishResultNotFound)

	// Resolved record no longer shows up as due.
	due, err = store.ListDueScheduledPosts(now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due-late", due[0].ID)
}

func TestMemoryStore_Replies(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.SaveReply(&domain.Reply{ID: "r-1", MessageID: "msg-1", Body: "first"}))
	require.NoError(t, store.SaveReply(&domain.Reply{ID: "r-2", MessageID: "msg-1", Body: "second"}))

	replies, err := store.ListReplies("msg-1")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "r-1", replies[0].ID)
	assert.Equal(t, "r-2", replies[1].ID)

	empty, err := store.ListReplies("missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_Runs(t *testing.T) {
	store := NewStore()

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, store.SaveRun(&domain.PipelineRun{ID: id, Status: domain.RunStatusSuccess}))
	}

	// Most recent first.
	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)

	// Re-saving a run updates it in place without duplicating it.
	require.NoError(t, store.SaveRun(&domain.PipelineRun{ID: "run-1", Status: domain.RunStatusPartial}))
	runs, err = store.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	got, err := store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPartial, got.Status)

	_, err = store.GetRun("missing")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewStore()

	message := &domain.Message{ID: "msg-1", Subject: "original"}
	require.NoError(t, store.SaveMessage(message))

	retrieved, err := store.GetMessage("msg-1")
	require.NoError(t, err)
	retrieved.Subject = "mutated"

	again, err := store.GetMessage("msg-1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Subject)
}
