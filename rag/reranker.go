package rag

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/llm/rerank"
	"github.com/BaSui01/docqa/types"
)

// Reranker reorders candidates by descending estimated relevance to the
// question. Implementations must preserve set membership and keep the
// original order among equal scores. An empty input returns an empty list
// without invoking any scorer.
type Reranker interface {
	Rerank(ctx context.Context, question string, candidates []Candidate) ([]Candidate, error)
}

// NoopReranker passes candidates through unchanged. It is the default when
// no rerank provider is configured; the vector-search similarity order
// stands.
type NoopReranker struct{}

// Rerank returns the candidates as-is.
func (NoopReranker) Rerank(_ context.Context, _ string, candidates []Candidate) ([]Candidate, error) {
	return candidates, nil
}

// ProviderReranker scores all (question, candidate) pairs in one batched
// provider call and reorders by the returned relevance.
type ProviderReranker struct {
	provider rerank.Provider
	logger   *zap.Logger
}

// NewProviderReranker wraps a rerank provider.
func NewProviderReranker(provider rerank.Provider, logger *zap.Logger) *ProviderReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderReranker{
		provider: provider,
		logger:   logger.With(zap.String("component", "reranker")),
	}
}

// Rerank reorders candidates by descending provider relevance. Candidates
// the provider does not score keep their vector-search score and sort after
// scored ones of equal value only by original position.
func (r *ProviderReranker) Rerank(ctx context.Context, question string, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) == 0 {
		return []Candidate{}, nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Text
	}

	results, err := r.provider.RerankSimple(ctx, question, documents, 0)
	if err != nil {
		return nil, types.NewError(types.ErrRerankProvider, "rerank candidates").
			WithCause(err).
			WithProvider(r.provider.Name())
	}

	reranked := make([]Candidate, len(candidates))
	copy(reranked, candidates)
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(reranked) {
			continue
		}
		reranked[res.Index].Score = res.RelevanceScore
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	return reranked, nil
}
