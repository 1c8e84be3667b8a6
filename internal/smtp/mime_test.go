package smtp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmail_PlainText(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"To: me@example.com, other@example.com\r\n" +
		"Cc: cc@example.com\r\n" +
		"Subject: Hello World\r\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"This is the body.\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)

	assert.Equal(t, "Hello World", parsed.Subject)
	assert.Equal(t, "sender@example.com", parsed.From)
	assert.Equal(t, []string{"me@example.com", "other@example.com"}, parsed.To)
	assert.Equal(t, []string{"cc@example.com"}, parsed.Cc)
	assert.Equal(t, 2006, parsed.Date.Year())
	assert.Equal(t, "This is the body.\r\n", parsed.Text)
	assert.Empty(t, parsed.HTML)
}

func TestParseEmail_NoContentType(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: Bare\r\n" +
		"\r\n" +
		"plain body\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)
	assert.Equal(t, "plain body\r\n", parsed.Text)
}

func TestParseEmail_Multipart(t *testing.T) {
	raw := []byte("From: news@example.com\r\n" +
		"To: me@example.com\r\n" +
		"Subject: Weekly Digest\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"BOUNDARY\"\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Plain version.\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>HTML version.</p>\r\n" +
		"--BOUNDARY--\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)

	assert.Contains(t, parsed.Text, "Plain version.")
	assert.Contains(t, parsed.HTML, "<p>HTML version.</p>")
}

func TestParseEmail_SkipsAttachments(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: With attachment\r\n" +
		"Content-Type: multipart/mixed; boundary=\"MIX\"\r\n" +
		"\r\n" +
		"--MIX\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Body text.\r\n" +
		"--MIX\r\n" +
		"Content-Type: application/pdf\r\n" +
		"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
		"\r\n" +
		"%PDF-1.4 fake\r\n" +
		"--MIX--\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)

	assert.Contains(t, parsed.Text, "Body text.")
	assert.NotContains(t, parsed.Text, "%PDF")
}

func TestParseEmail_QuotedPrintable(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: Encoded\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"Caf=C3=A9 time\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)
	assert.Contains(t, parsed.Text, "Café time")
}

func TestParseEmail_EncodedSubject(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: =?UTF-8?B?5ZGo5oql?=\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"body\r\n")

	parsed, err := ParseEmail(raw)
	require.NoError(t, err)
	assert.Equal(t, "周报", parsed.Subject)
}

func TestParseEmail_MultipartWithoutBoundary(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: Broken\r\n" +
		"Content-Type: multipart/mixed\r\n" +
		"\r\n" +
		"body\r\n")

	_, err := ParseEmail(raw)
	assert.Error(t, err)
}

func TestParsedEmail_ToMessage(t *testing.T) {
	parsed := &ParsedEmail{
		Subject: "Hello",
		From:    "sender@example.com",
		To:      []string{"me@example.com"},
		Date:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Text:    "line one\n\nline   two " + strings.Repeat("x", 300),
	}

	msg := parsed.ToMessage()

	assert.Equal(t, "Hello", msg.Subject)
	assert.Equal(t, Source, msg.Source)
	assert.Equal(t, parsed.Date, msg.Date)
	// Snippet collapses whitespace and caps at 200 runes.
	assert.Equal(t, 200, len([]rune(msg.Snippet)))
	assert.NotContains(t, msg.Snippet, "\n")
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestParsedEmail_ToMessageDefaultsDate(t *testing.T) {
	parsed := &ParsedEmail{From: "a@example.com", Text: "hi"}
	msg := parsed.ToMessage()
	assert.False(t, msg.Date.IsZero())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short text", snippet("short   text", 200))
	assert.Equal(t, "ab", snippet("abcd", 2))
	assert.Equal(t, "", snippet("", 10))
}
