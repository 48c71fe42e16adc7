package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaboost/pharmaboost/internal/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) llm.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := llm.DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL
	cfg.Model = "gemini-test"
	cfg.Timeout = 5 * time.Second

	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	t.Run("RequiresAPIKey", func(t *testing.T) {
		_, err := New(llm.DefaultConfig())
		assert.ErrorIs(t, err, llm.ErrNoAPIKey)
	})
}

func TestGenerate(t *testing.T) {
	t.Run("ParsesCandidateText", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
			assert.Contains(t, r.URL.Path, "gemini-test:generateContent")

			_ = json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{{
					"content": map[string]any{
						"parts": []map[string]any{{"text": "hello "}, {"text": "world"}},
						"role":  "model",
					},
					"finishReason": "STOP",
				}},
			})
		})

		resp, err := p.Generate(context.Background(), &llm.Request{Prompt: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "hello world", resp.Text)
	})

	t.Run("SafetyOverridesInBody", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), "HARM_CATEGORY_DANGEROUS_CONTENT")
			assert.Contains(t, string(body), "BLOCK_NONE")
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
		})

		_, err := p.Generate(context.Background(), &llm.Request{Prompt: "hi", DisableSafety: true})
		assert.NoError(t, err)
	})

	t.Run("RateLimitIsTransient", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		})

		_, err := p.Generate(context.Background(), &llm.Request{Prompt: "hi"})
		require.Error(t, err)
		assert.True(t, llm.IsTransient(err))
	})

	t.Run("BadRequestIsFatal", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "invalid request", http.StatusBadRequest)
		})

		_, err := p.Generate(context.Background(), &llm.Request{Prompt: "hi"})
		require.Error(t, err)
		assert.False(t, llm.IsTransient(err))
	})

	t.Run("NoCandidatesYieldsEmptyText", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		})

		resp, err := p.Generate(context.Background(), &llm.Request{Prompt: "hi"})
		require.NoError(t, err)
		assert.Empty(t, resp.Text)
	})
}
