package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"agenticflow/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(config.LLMConfig{
		BaseURL:     serverURL,
		APIKey:      "test-key",
		Model:       "test-model",
		MaxTokens:   100,
		Temperature: 0.2,
		Timeout:     5 * time.Second,
	}, zap.NewNop())
}

func completionBody(content string) string {
	return `{"choices":[{"message":{"content":` + jsonQuote(content) + `}}]}`
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestClient_Complete(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("hello from the model")))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	content, err := client.Complete(context.Background(), Request{
		System:   "system prompt",
		Prompt:   "user prompt",
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from the model", content)

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	assert.Equal(t, 100, captured.MaxTokens)
}

func TestClient_CompleteWithoutAPIKey(t *testing.T) {
	client := NewClient(config.LLMConfig{BaseURL: "http://unused"}, zap.NewNop())

	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_CompleteEmptyChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestClient_CompleteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit exceeded","type":"rate_limit"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Contains(t, err.Error(), "429")
}

func TestClient_CompleteJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(completionBody(`{"intent":"question","confidence":80}`)))
	}))
	defer server.Close()

	var out struct {
		Intent     string `json:"intent"`
		Confidence int    `json:"confidence"`
	}
	err := newTestClient(server.URL).CompleteJSON(context.Background(), Request{Prompt: "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "question", out.Intent)
	assert.Equal(t, 80, out.Confidence)
}

func TestClient_CompleteJSONParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(completionBody("not json")))
	}))
	defer server.Close()

	var out map[string]interface{}
	err := newTestClient(server.URL).CompleteJSON(context.Background(), Request{Prompt: "hi"}, &out)
	assert.Error(t, err)
}

func TestClient_Model(t *testing.T) {
	assert.Equal(t, "test-model", newTestClient("http://unused").Model())
}
