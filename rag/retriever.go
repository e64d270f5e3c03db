package rag

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/llm/embedding"
)

// RetrievalConfig controls query expansion and candidate selection.
type RetrievalConfig struct {
	// MaxExpansions is the number of query variants searched per question.
	MaxExpansions int `yaml:"max_expansions" json:"max_expansions"`

	// FetchK is the over-fetch count per variant, before dedupe and rerank.
	FetchK int `yaml:"fetch_k" json:"fetch_k"`
}

// DefaultRetrievalConfig returns the production defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		MaxExpansions: 3,
		FetchK:        10,
	}
}

// Retriever composes expansion, multi-query vector search, dedupe, and
// rerank into a single retrieval call.
type Retriever struct {
	config    RetrievalConfig
	embedder  embedding.Provider
	store     VectorStore
	reranker  Reranker
	collector *metrics.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewRetriever creates a retriever. A nil reranker defaults to the
// passthrough NoopReranker; the metrics collector may be nil.
func NewRetriever(config RetrievalConfig, embedder embedding.Provider, store VectorStore, reranker Reranker, collector *metrics.Collector, logger *zap.Logger) *Retriever {
	if reranker == nil {
		reranker = NoopReranker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		config:    config,
		embedder:  embedder,
		store:     store,
		reranker:  reranker,
		collector: collector,
		tracer:    otel.Tracer("docqa/rag"),
		logger:    logger.With(zap.String("component", "retriever")),
	}
}

// Retrieve returns up to topK deduplicated candidates in descending
// relevance order. Candidates are searched under every query variant but
// reranked against the original question.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]Candidate, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "rag.retrieve",
		trace.WithAttributes(attribute.Int("retrieval.top_k", topK)))
	defer span.End()

	variants := ExpandQuery(question, r.config.MaxExpansions)

	// One search per variant, recombined by variant index so the
	// cross-variant discovery order stays deterministic.
	perVariant := make([][]Candidate, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			vec, err := r.embedder.EmbedQuery(gctx, variant)
			if err != nil {
				return err
			}
			hits, err := r.store.Query(gctx, vec, r.config.FetchK)
			if err != nil {
				return err
			}
			perVariant[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	merged := dedupeByText(perVariant)

	reranked, err := r.reranker.Rerank(ctx, question, merged)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if topK >= 0 && len(reranked) > topK {
		reranked = reranked[:topK]
	}

	span.SetAttributes(attribute.Int("retrieval.candidates", len(reranked)))
	r.collector.RetrievalObserved(time.Since(start), len(reranked))
	r.logger.Debug("retrieval complete",
		zap.Int("variants", len(variants)),
		zap.Int("merged", len(merged)),
		zap.Int("returned", len(reranked)))
	return reranked, nil
}

// dedupeByText flattens per-variant result lists and drops candidates whose
// exact text was already seen. The first occurrence wins, preserving the
// cross-variant discovery order.
func dedupeByText(perVariant [][]Candidate) []Candidate {
	seen := map[string]bool{}
	merged := []Candidate{}
	for _, hits := range perVariant {
		for _, c := range hits {
			if seen[c.Text] {
				continue
			}
			seen[c.Text] = true
			merged = append(merged, c)
		}
	}
	return merged
}
