package cache

import (
	"context"
	"testing"
	"time"

	"agenticflow/backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_MarkProcessed(t *testing.T) {
	cache := NewLocal(time.Minute)
	ctx := context.Background()

	// First mark wins, second sees the existing flag.
	fresh, err := cache.MarkProcessed(ctx, "msg-1", 0)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = cache.MarkProcessed(ctx, "msg-1", 0)
	require.NoError(t, err)
	assert.False(t, fresh)

	processed, err := cache.IsProcessed(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, processed)

	// Clearing the flag lets the message be marked again.
	require.NoError(t, cache.ClearProcessed(ctx, "msg-1"))

	fresh, err = cache.MarkProcessed(ctx, "msg-1", 0)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestLocal_MarkProcessedExpiry(t *testing.T) {
	cache := NewLocal(time.Minute)
	ctx := context.Background()

	fresh, err := cache.MarkProcessed(ctx, "msg-1", 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, fresh)

	time.Sleep(20 * time.Millisecond)

	// Expired flag behaves like it was never set.
	fresh, err = cache.MarkProcessed(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestLocal_ClassificationRoundTrip(t *testing.T) {
	cache := NewLocal(time.Minute)
	ctx := context.Background()

	classification := &domain.Classification{
		ID:        "c-1",
		MessageID: "msg-1",
		Intent:    "question",
		Priority:  domain.PriorityHigh,
	}

	require.NoError(t, cache.CacheClassification(ctx, classification, 0))

	got, err := cache.GetCachedClassification(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c-1", got.ID)
	assert.Equal(t, domain.PriorityHigh, got.Priority)

	// The cache hands out copies in both directions.
	classification.Intent = "mutated"
	got.ID = "also-mutated"

	again, err := cache.GetCachedClassification(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "question", again.Intent)
	assert.Equal(t, "c-1", again.ID)
}

func TestLocal_ClassificationMiss(t *testing.T) {
	cache := NewLocal(time.Minute)

	got, err := cache.GetCachedClassification(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}
