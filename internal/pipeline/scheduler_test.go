package pipeline

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/social"
	"agenticflow/backend/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_SweepScheduled(t *testing.T) {
	log := zap.NewNop()
	store := memory.NewStore()

	poster := &fakePoster{}
	publisher := social.NewPublisher(poster, 0, 1, log)
	require.NoError(t, publisher.Connect("twitter", map[string]string{"token": "test"}))

	scheduler := NewScheduler(store, publisher, nil, testMetrics, testConfig(), log)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	require.NoError(t, store.SavePublishResult(&domain.PublishResult{
		ID:          "due-1",
		Platform:    "twitter",
		Content:     "due content",
		Status:      domain.PostStatusScheduled,
		ScheduledAt: &past,
	}))
	require.NoError(t, store.SavePublishResult(&domain.PublishResult{
		ID:          "future-1",
		Platform:    "twitter",
		Content:     "not yet",
		Status:      domain.PostStatusScheduled,
		ScheduledAt: &future,
	}))

	scheduler.SweepScheduled(context.Background())

	// The due post is delivered and resolved.
	resolved, err := store.GetPublishResult("due-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusPosted, resolved.Status)
	assert.Equal(t, "twitter-1", resolved.PostID)
	require.NotNil(t, resolved.PostedAt)
	assert.Equal(t, 1, poster.calls)

	// The future post stays scheduled.
	pending, err := store.GetPublishResult("future-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusScheduled, pending.Status)

	// A second sweep finds nothing to do.
	scheduler.SweepScheduled(context.Background())
	assert.Equal(t, 1, poster.calls)
}

func TestScheduler_SweepDeliveryFailure(t *testing.T) {
	log := zap.NewNop()
	store := memory.NewStore()

	// No platforms connected: delivery is rejected and the record is
	// resolved as failed instead of staying due forever.
	publisher := social.NewPublisher(&fakePoster{}, 0, 1, log)
	scheduler := NewScheduler(store, publisher, nil, testMetrics, testConfig(), log)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.SavePublishResult(&domain.PublishResult{
		ID:          "due-2",
		Platform:    "twitter",
		Content:     "orphaned",
		Status:      domain.PostStatusScheduled,
		ScheduledAt: &past,
	}))

	scheduler.SweepScheduled(context.Background())

	resolved, err := store.GetPublishResult("due-2")
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusFailed, resolved.Status)
	assert.NotEmpty(t, resolved.Error)
}
