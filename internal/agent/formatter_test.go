package agent

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"agenticflow/backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformLimit(t *testing.T) {
	assert.Equal(t, 280, PlatformLimit("twitter"))
	assert.Equal(t, 280, PlatformLimit("Twitter"))
	assert.Equal(t, 3000, PlatformLimit("linkedin"))
	assert.Equal(t, 63206, PlatformLimit("facebook"))
	assert.Equal(t, 2200, PlatformLimit("instagram"))
	assert.Equal(t, 1000, PlatformLimit("mastodon"))
}

func TestFormatter_Format(t *testing.T) {
	formatter := NewFormatter(zap.NewNop())

	article := domain.Article{
		Title:    "Go 1.25 Released",
		Summary:  "The latest Go release brings faster builds.",
		Category: "Tech News",
	}

	post, err := formatter.Format(article, "LinkedIn", FormatOptions{IncludeHashtags: true})
	require.NoError(t, err)

	assert.Equal(t, "linkedin", post.Platform)
	assert.Equal(t, "professional", post.Style)
	assert.Equal(t, 3000, post.MaxLength)
	assert.False(t, post.Truncated)
	assert.True(t, strings.HasPrefix(post.Content, article.Title))
	assert.Contains(t, post.Content, article.Summary)
	assert.Equal(t, []string{"#technews", "#news"}, post.Hashtags)
	assert.Equal(t, []string{}, post.Mentions)
	assert.Equal(t, len([]rune(post.Content)), post.FormattedLength)
}

func TestFormatter_TruncatesToPlatformLimit(t *testing.T) {
	formatter := NewFormatter(zap.NewNop())

	article := domain.Article{
		Title:   "Long read",
		Summary: strings.Repeat("verbose content ", 50),
	}

	post, err := formatter.Format(article, "twitter", FormatOptions{})
	require.NoError(t, err)

	assert.True(t, post.Truncated)
	assert.Equal(t, 280, post.FormattedLength)
	assert.True(t, strings.HasSuffix(post.Content, "..."))
	assert.LessOrEqual(t, post.FormattedLength, post.MaxLength)
}

func TestFormatter_MaxLengthOption(t *testing.T) {
	formatter := NewFormatter(zap.NewNop())

	article := domain.Article{Title: "Title", Summary: strings.Repeat("x", 200)}

	// MaxLength below the platform limit wins.
	post, err := formatter.Format(article, "linkedin", FormatOptions{MaxLength: 100})
	require.NoError(t, err)
	assert.Equal(t, 100, post.MaxLength)
	assert.True(t, post.Truncated)
	assert.Equal(t, 100, post.FormattedLength)

	// MaxLength above the platform limit is capped by the platform.
	post, err = formatter.Format(article, "twitter", FormatOptions{MaxLength: 5000})
	require.NoError(t, err)
	assert.Equal(t, 280, post.MaxLength)
}

func TestFormatter_TinyMaxLengthNeverExceeded(t *testing.T) {
	formatter := NewFormatter(zap.NewNop())

	article := domain.Article{Title: "Title", Summary: strings.Repeat("x", 50)}

	// 限制小于省略号长度时硬截断，结果不得超限。
	for _, limit := range []int{1, 2, 3} {
		post, err := formatter.Format(article, "twitter", FormatOptions{MaxLength: limit})
		require.NoError(t, err)
		assert.True(t, post.Truncated)
		assert.Equal(t, limit, post.FormattedLength)
		assert.LessOrEqual(t, len([]rune(post.Content)), limit)
	}
}

func TestFormatter_Deterministic(t *testing.T) {
	formatter := NewFormatter(zap.NewNop())

	article := domain.Article{Title: "Stable", Summary: "Same output every time.", Category: "tech"}
	opts := FormatOptions{Style: "casual", IncludeHashtags: true}

	first, err := formatter.Format(article, "twitter", opts)
	require.NoError(t, err)
	second, err := formatter.Format(article, "twitter", opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFormatter_EmptyArticle(t *testing.T) {
	formatter := NewFormatter(zap.NewNop())

	_, err := formatter.Format(domain.Article{}, "twitter", FormatOptions{})
	assert.ErrorIs(t, err, ErrEmptyArticle)
}

func TestFormatter_Mentions(t *testing.T) {
	formatter := NewFormatter(zap.NewNop())

	article := domain.Article{Title: "Release notes"}
	post, err := formatter.Format(article, "twitter", FormatOptions{
		IncludeMentions: true,
		Mentions:        []string{"@golang"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"@golang"}, post.Mentions)
	assert.Contains(t, post.Content, "@golang")
}

func TestFormatter_BatchFormatSkipsEmptyArticles(t *testing.T) {
	formatter := NewFormatter(zap.NewNop())

	articles := []domain.Article{
		{Title: "First"},
		{}, // no content, skipped
		{Title: "Third"},
	}

	posts := formatter.BatchFormat(articles, "twitter", FormatOptions{})
	require.Len(t, posts, 2)
	assert.Equal(t, "First", posts[0].Content)
	assert.Equal(t, "Third", posts[1].Content)
}

func TestDeriveHashtags(t *testing.T) {
	// Category collapses to the #news default instead of duplicating it.
	assert.Equal(t, []string{"#news"}, deriveHashtags(domain.Article{Category: "News"}))
	assert.Equal(t, []string{"#news"}, deriveHashtags(domain.Article{}))
	assert.Equal(t, []string{"#ai", "#news"}, deriveHashtags(domain.Article{Category: "AI"}))
}
