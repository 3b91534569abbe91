package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/randalmurphal/llmkit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prerrors "github.com/randalmurphal/proref/errors"
	prhttp "github.com/randalmurphal/proref/http"
)

func newAnthropicServer(t *testing.T, h http.HandlerFunc) *Anthropic {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	a, err := NewAnthropic(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-haiku-test",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	return a
}

func TestAnthropicComplete(t *testing.T) {
	a := newAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-haiku-test", body.Model)
		assert.Equal(t, DefaultMaxTokens, body.MaxTokens)
		if assert.Len(t, body.Messages, 1) {
			assert.Equal(t, "user", body.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-test",
			"content": [{"type": "text", "text": "- Which roles?"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 120, "output_tokens": 8}
		}`))
	})

	c, err := a.Complete(t.Context(), "ask something")
	require.NoError(t, err)
	assert.Equal(t, "- Which roles?", c.Text)
	assert.Equal(t, int64(120), c.InputTokens)
	assert.Equal(t, int64(8), c.OutputTokens)
	assert.Equal(t, "claude-haiku-test", a.Model())
}

func TestAnthropicErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantIs   error
		wantKind prerrors.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, prhttp.ErrRateLimited, prerrors.KindTransient},
		{"overloaded", 529, prhttp.ErrServerError, prerrors.KindTransient},
		{"unauthorized", http.StatusUnauthorized, prhttp.ErrUnauthorized, prerrors.KindPermanent},
		{"bad request", http.StatusBadRequest, prhttp.ErrBadRequest, prerrors.KindPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			a := newAnthropicServer(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"nope"}}`))
			})

			_, err := a.Complete(t.Context(), "hi")
			require.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantKind, prerrors.Classify(err))
			assert.Equal(t, int32(1), calls.Load(), "the SDK must not retry on its own")
		})
	}
}

func TestAnthropicRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewAnthropic(AnthropicConfig{Model: "m"})
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestAnthropicModelID(t *testing.T) {
	assert.Equal(t, "claude-sonnet-4-20250514", AnthropicModelID(model.ModelSonnet))
	assert.Equal(t, "claude-3-5-haiku-20241022", AnthropicModelID(model.ModelHaiku))
	assert.Equal(t, "claude-custom-1", AnthropicModelID("claude-custom-1"))
}
