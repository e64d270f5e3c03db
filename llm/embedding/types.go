// Package embedding provides the embedding capability used at both index
// and query time.
//
// Operational invariant: one index generation must be built and queried with
// the same provider configuration (model and dimensions). Mixing embedding
// models silently invalidates similarity scores; the pipeline cannot detect
// the mismatch.
package embedding

import "context"

// Provider is the unified embedding provider interface. Implementations
// return exactly one L2-normalized vector per input text, so cosine
// similarity reduces to a dot product downstream.
type Provider interface {
	// EmbedDocuments embeds a batch of texts for indexing.
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// MaxBatchSize returns the largest batch a single request may carry.
	MaxBatchSize() int

	// Name returns the provider name.
	Name() string
}
