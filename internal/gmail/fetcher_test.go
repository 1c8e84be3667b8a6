package gmail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetch_ZeroLimitReturnsNothing(t *testing.T) {
	// 未触达 Gmail API 前即返回，因此 srv 可以为空。
	f := &Fetcher{log: zap.NewNop()}

	assert.Empty(t, f.Fetch(context.Background(), 0, true))
	assert.Empty(t, f.Fetch(context.Background(), -1, false))
}

func TestParseDate(t *testing.T) {
	for _, value := range []string{
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
		"2 Jan 2006 15:04:05 -0700",
	} {
		got, err := parseDate(value)
		require.NoError(t, err, value)
		assert.Equal(t, time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC), got, value)
	}

	_, err := parseDate("not a date")
	assert.Error(t, err)
}

func TestSplitAddresses(t *testing.T) {
	got := splitAddresses("a@example.com, Bob <b@example.com> ,, c@example.com")
	assert.Equal(t, []string{"a@example.com", "Bob <b@example.com>", "c@example.com"}, got)
}
