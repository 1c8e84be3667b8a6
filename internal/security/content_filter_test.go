package security

import (
	"testing"

	"agenticflow/backend/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestContentFilter_AllowsNormalMail(t *testing.T) {
	filter := NewContentFilter()

	ok, reason := filter.FilterMessage(&domain.Message{
		Subject: "Meeting notes",
		Text:    "Here are the notes from today's meeting.",
	})
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestContentFilter_RejectsMaliciousContent(t *testing.T) {
	filter := NewContentFilter()

	cases := []struct {
		name string
		msg  domain.Message
	}{
		{"script tag", domain.Message{HTML: "<script>alert(1)</script>"}},
		{"javascript url", domain.Message{HTML: `<a href="javascript:steal()">x</a>`}},
		{"iframe", domain.Message{HTML: `<iframe src="https://evil.example"></iframe>`}},
		{"event handler", domain.Message{HTML: `<img src=x onerror=alert(1)>`}},
		{"cookie access", domain.Message{Text: "document.cookie"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := filter.FilterMessage(&tc.msg)
			assert.False(t, ok)
			assert.Contains(t, reason, "malicious content")
		})
	}
}

func TestContentFilter_RejectsSpam(t *testing.T) {
	filter := NewContentFilter()

	// Three or more spam keywords trip the filter.
	ok, reason := filter.FilterMessage(&domain.Message{
		Subject: "Congratulations winner!",
		Text:    "Click here to claim your free money. Act now, guaranteed!",
	})
	assert.False(t, ok)
	assert.Contains(t, reason, "spam content")
}

func TestContentFilter_ToleratesOneSpamKeyword(t *testing.T) {
	filter := NewContentFilter()

	// A single marketing phrase does not make a message spam.
	ok, _ := filter.FilterMessage(&domain.Message{
		Subject: "Limited time offer on conference tickets",
		Text:    "Early bird pricing ends Friday.",
	})
	assert.True(t, ok)
}
