package rerank

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

func newTestCohere(t *testing.T, handler http.HandlerFunc) *CohereProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCohereProvider(CohereConfig{APIKey: "test-key", BaseURL: srv.URL}, nil)
}

func TestRerankSimple(t *testing.T) {
	provider := newTestCohere(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/rerank", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req cohereRerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is regression", req.Query)
		require.Len(t, req.Documents, 3)

		resp := map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.91},
				{"index": 0, "relevance_score": 0.44},
				{"index": 1, "relevance_score": 0.12},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	results, err := provider.RerankSimple(context.Background(), "what is regression",
		[]string{"a", "b", "c"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 2, results[0].Index)
	assert.InDelta(t, 0.91, results[0].RelevanceScore, 1e-9)
}

func TestRerankSimpleEmptyDocuments(t *testing.T) {
	provider := newTestCohere(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty documents")
	})

	results, err := provider.RerankSimple(context.Background(), "q", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRerankSimpleUpstreamError(t *testing.T) {
	provider := newTestCohere(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := provider.RerankSimple(context.Background(), "q", []string{"doc"}, 0)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrRerankProvider))
	assert.True(t, types.IsRetryable(err))
}

func TestRerankSimpleIndexOutOfRange(t *testing.T) {
	provider := newTestCohere(t, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"results": []map[string]any{{"index": 9, "relevance_score": 0.5}},
		}
		json.NewEncoder(w).Encode(resp)
	})

	_, err := provider.RerankSimple(context.Background(), "q", []string{"doc"}, 0)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrRerankProvider))
}
