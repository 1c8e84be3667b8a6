package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"agenticflow/backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_DegradedWithoutGenerator(t *testing.T) {
	extractor := NewExtractor(nil, zap.NewNop())

	msg := &domain.Message{
		ID:      "msg-1",
		From:    "news@example.com",
		Subject: "Weekly Digest",
		Text:    "stories of the week",
	}

	extraction := extractor.Extract(context.Background(), msg)

	assert.Equal(t, "msg-1", extraction.MessageID)
	assert.Equal(t, "Weekly Digest", extraction.Title)
	assert.Equal(t, domain.ContentTypeOther, extraction.ContentType)
	assert.Empty(t, extraction.Articles)
	assert.NotEmpty(t, extraction.Error)
	assert.Equal(t, "news@example.com", extraction.Source)
}

func TestExtractor_DegradedOnGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("timeout")}
	extractor := NewExtractor(gen, zap.NewNop())

	msg := &domain.Message{ID: "msg-2", Subject: "Digest", Text: "body"}
	extraction := extractor.Extract(context.Background(), msg)

	assert.Equal(t, "timeout", extraction.Error)
	assert.Empty(t, extraction.Articles)
	assert.Equal(t, "Digest", extraction.Title)
}

func TestExtractor_DegradedOnUnparseableOutput(t *testing.T) {
	gen := &fakeGenerator{response: "plain prose, not json"}
	extractor := NewExtractor(gen, zap.NewNop())

	msg := &domain.Message{ID: "msg-3", Subject: "Digest", Text: "body"}
	extraction := extractor.Extract(context.Background(), msg)

	assert.Contains(t, extraction.Error, "parse extraction output")
	assert.Empty(t, extraction.Articles)
}

func TestExtractor_Extract(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"title": "  AI Weekly #42  ",
		"summary": "Three stories about machine learning.",
		"content_type": "Article",
		"articles": [
			{
				"title": "New model released",
				"summary": "A lab shipped a new model.",
				"key_points": ["faster", "cheaper"],
				"category": " AI ",
				"sentiment": "positive",
				"url": " https://example.com/a "
			},
			{"title": "", "summary": ""},
			{"title": "Funding round", "sentiment": "bogus"}
		]
	}`}
	extractor := NewExtractor(gen, zap.NewNop())

	msg := &domain.Message{ID: "msg-4", From: "ai@example.com", Subject: "AI Weekly", Text: "body"}
	extraction := extractor.Extract(context.Background(), msg)

	assert.Empty(t, extraction.Error)
	assert.Equal(t, "AI Weekly #42", extraction.Title)
	assert.Equal(t, "Three stories about machine learning.", extraction.Summary)
	assert.Equal(t, domain.ContentTypeArticle, extraction.ContentType)
	assert.Equal(t, "fake-model", extraction.Model)

	// Article without title and summary is dropped.
	require.Len(t, extraction.Articles, 2)

	first := extraction.Articles[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "New model released", first.Title)
	assert.Equal(t, []string{"faster", "cheaper"}, first.KeyPoints)
	assert.Equal(t, "ai", first.Category)
	assert.Equal(t, domain.SentimentPositive, first.Sentiment)
	assert.Equal(t, "https://example.com/a", first.URL)

	second := extraction.Articles[1]
	assert.Equal(t, []string{}, second.KeyPoints)
	assert.Equal(t, domain.SentimentNeutral, second.Sentiment)
}

func TestExtractor_EmptyTitleKeepsSubject(t *testing.T) {
	gen := &fakeGenerator{response: `{"title": "  ", "summary": "s", "content_type": "update", "articles": []}`}
	extractor := NewExtractor(gen, zap.NewNop())

	msg := &domain.Message{ID: "msg-5", Subject: "Fallback Subject", Text: "body"}
	extraction := extractor.Extract(context.Background(), msg)

	assert.Equal(t, "Fallback Subject", extraction.Title)
	assert.Equal(t, domain.ContentTypeUpdate, extraction.ContentType)
}

func TestPreprocess(t *testing.T) {
	input := `<html><body><p>Top story of the week.</p>
	[image: banner] Read more at https://example.com/story
	Unsubscribe from this list at any time.</body></html>`

	out := Preprocess(input)

	assert.NotContains(t, out, "<")
	assert.NotContains(t, out, "https://")
	assert.NotContains(t, out, "[image")
	assert.NotContains(t, strings.ToLower(out), "unsubscribe")
	assert.Contains(t, out, "Top story of the week.")
	// Whitespace is collapsed to single spaces.
	assert.NotContains(t, out, "  ")
}

func TestPreprocess_KeepsContentAfterBoilerplateLine(t *testing.T) {
	input := "First article: Go 1.24 released.\nSubscribe to our premium tier for more.\nSecond article: Rust update."

	out := Preprocess(input)

	assert.Contains(t, out, "First article: Go 1.24 released.")
	assert.Contains(t, out, "Second article: Rust update.")
	assert.NotContains(t, strings.ToLower(out), "subscribe")
}

func TestPreprocess_TruncatesToBudget(t *testing.T) {
	out := Preprocess(strings.Repeat("a", extractContentBudget+500))
	assert.Equal(t, extractContentBudget, len([]rune(out)))
}

func TestPreprocess_Empty(t *testing.T) {
	assert.Equal(t, "", Preprocess(""))
}

func TestApplyFormatRules(t *testing.T) {
	article := domain.Article{
		Title:   "the weekly roundup",
		Summary: strings.Repeat("summary ", 20),
	}

	out := ApplyFormatRules(article, FormatRules{TitleCase: true, MaxSummaryLength: 50})

	assert.Equal(t, "The Weekly Roundup", out.Title)
	assert.Equal(t, 50, len([]rune(out.Summary)))
	assert.True(t, strings.HasSuffix(out.Summary, "..."))

	// Original article is not mutated.
	assert.Equal(t, "the weekly roundup", article.Title)
}
