package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/docqa/types"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *OpenAICompatProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		ProviderName: "groq",
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		Model:        "llama-3.1-8b-instant",
	}, nil)
}

func TestComplete(t *testing.T) {
	provider := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.1-8b-instant", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Regression fits a line. [Chunk 0]"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	answer, err := provider.Complete(context.Background(), "QUESTION: explain regression")
	require.NoError(t, err)
	assert.Equal(t, "Regression fits a line. [Chunk 0]", answer)
}

func TestCompleteUpstreamError(t *testing.T) {
	provider := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	})

	_, err := provider.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrLanguageModel))
	assert.True(t, types.IsRetryable(err))
}

func TestCompleteNoChoices(t *testing.T) {
	provider := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := provider.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrLanguageModel))
	assert.False(t, types.IsRetryable(err))
}

func TestNewGroqDefaults(t *testing.T) {
	provider := NewGroq("key", "", nil)
	assert.Equal(t, "groq", provider.Name())
	assert.Equal(t, "llama-3.1-8b-instant", provider.cfg.Model)
	assert.Equal(t, "https://api.groq.com/openai", provider.cfg.BaseURL)
}
