package social

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"agenticflow/backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePoster records deliveries and returns a canned response or error.
type fakePoster struct {
	err   error
	calls int
}

func (f *fakePoster) Post(_ context.Context, platform, _ string, _ []string) (*PostResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &PostResponse{PostID: platform + "-post-1", URL: "https://" + platform + ".example/p/1"}, nil
}

func newTestPublisher(poster Poster) *Publisher {
	return NewPublisher(poster, 0, 1, zap.NewNop())
}

func TestPublisher_Connect(t *testing.T) {
	pub := newTestPublisher(&fakePoster{})

	err := pub.Connect("twitter", map[string]string{"token": "abc"})
	require.NoError(t, err)
	assert.True(t, pub.Connected("twitter"))
	assert.Equal(t, []string{"twitter"}, pub.Platforms())

	// Reconnecting is idempotent.
	err = pub.Connect("twitter", map[string]string{"token": "def"})
	require.NoError(t, err)
	assert.Len(t, pub.Platforms(), 1)

	pub.Disconnect("twitter")
	assert.False(t, pub.Connected("twitter"))
}

func TestPublisher_ConnectValidation(t *testing.T) {
	pub := newTestPublisher(&fakePoster{})

	assert.ErrorIs(t, pub.Connect("", map[string]string{"token": "abc"}), ErrInvalidCredentials)
	assert.ErrorIs(t, pub.Connect("twitter", nil), ErrInvalidCredentials)
	assert.ErrorIs(t, pub.Connect("twitter", map[string]string{}), ErrInvalidCredentials)
}

func TestPublisher_PostNotConnected(t *testing.T) {
	pub := newTestPublisher(&fakePoster{})

	_, err := pub.Post(context.Background(), "twitter", "hello", nil, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPublisher_PostEmptyContent(t *testing.T) {
	pub := newTestPublisher(&fakePoster{})
	require.NoError(t, pub.Connect("twitter", map[string]string{"token": "abc"}))

	_, err := pub.Post(context.Background(), "twitter", "", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestPublisher_PostImmediate(t *testing.T) {
	poster := &fakePoster{}
	pub := newTestPublisher(poster)
	require.NoError(t, pub.Connect("twitter", map[string]string{"token": "abc"}))

	result, err := pub.Post(context.Background(), "twitter", "hello world", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.PostStatusPosted, result.Status)
	assert.Equal(t, "twitter-post-1", result.PostID)
	assert.NotEmpty(t, result.URL)
	assert.NotNil(t, result.PostedAt)
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, poster.calls)
}

func TestPublisher_PostScheduled(t *testing.T) {
	poster := &fakePoster{}
	pub := newTestPublisher(poster)
	require.NoError(t, pub.Connect("twitter", map[string]string{"token": "abc"}))

	future := time.Now().Add(time.Hour)
	result, err := pub.Post(context.Background(), "twitter", "later", nil, &future)
	require.NoError(t, err)

	// Scheduled posts do not reach the platform until the sweep delivers them.
	assert.Equal(t, domain.PostStatusScheduled, result.Status)
	require.NotNil(t, result.ScheduledAt)
	assert.Empty(t, result.PostID)
	assert.Equal(t, 0, poster.calls)
}

func TestPublisher_PostPastScheduleDeliversNow(t *testing.T) {
	poster := &fakePoster{}
	pub := newTestPublisher(poster)
	require.NoError(t, pub.Connect("twitter", map[string]string{"token": "abc"}))

	past := time.Now().Add(-time.Minute)
	result, err := pub.Post(context.Background(), "twitter", "now", nil, &past)
	require.NoError(t, err)

	assert.Equal(t, domain.PostStatusPosted, result.Status)
	assert.Equal(t, 1, poster.calls)
}

func TestPublisher_PostDeliveryFailure(t *testing.T) {
	poster := &fakePoster{err: errors.New("gateway unavailable")}
	pub := newTestPublisher(poster)
	require.NoError(t, pub.Connect("twitter", map[string]string{"token": "abc"}))

	result, err := pub.Post(context.Background(), "twitter", "hello", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.PostStatusFailed, result.Status)
	assert.Equal(t, "gateway unavailable", result.Error)
	assert.Nil(t, result.PostedAt)
}

func TestPublisher_Deliver(t *testing.T) {
	poster := &fakePoster{}
	pub := newTestPublisher(poster)
	require.NoError(t, pub.Connect("twitter", map[string]string{"token": "abc"}))

	result := &domain.PublishResult{
		ID:       "pr-1",
		Platform: "twitter",
		Content:  "due post",
		Status:   domain.PostStatusScheduled,
	}

	require.NoError(t, pub.Deliver(context.Background(), result))
	assert.Equal(t, domain.PostStatusPosted, result.Status)
	assert.Equal(t, "twitter-post-1", result.PostID)
}

func TestPublisher_DeliverNotConnected(t *testing.T) {
	pub := newTestPublisher(&fakePoster{})

	result := &domain.PublishResult{ID: "pr-2", Platform: "twitter", Content: "due post"}
	err := pub.Deliver(context.Background(), result)

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, domain.PostStatusFailed, result.Status)
}

func TestPublisher_BatchPostIndependentFailures(t *testing.T) {
	poster := &fakePoster{}
	pub := newTestPublisher(poster)
	require.NoError(t, pub.Connect("twitter", map[string]string{"token": "abc"}))

	posts := []domain.FormattedPost{
		{Platform: "twitter", Content: "first"},
		{Platform: "linkedin", Content: "not connected"},
		{Platform: "twitter", Content: "third"},
	}

	items := pub.BatchPost(context.Background(), posts, nil)
	require.Len(t, items, 3)

	assert.True(t, items[0].Success)
	assert.Equal(t, domain.PostStatusPosted, items[0].Result.Status)

	assert.False(t, items[1].Success)
	assert.Contains(t, items[1].Error, "not connected")
	assert.Nil(t, items[1].Result)

	assert.True(t, items[2].Success)
	assert.Equal(t, 2, poster.calls)
}
