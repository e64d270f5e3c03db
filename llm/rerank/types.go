// Package rerank provides the relevance-scoring capability used by the
// retrieval reranker. A provider scores (query, document) pairs in one
// batched call and returns normalized relevance scores.
package rerank

import "context"

// Result is the relevance score for a single document.
type Result struct {
	// Index is the document's position in the request.
	Index int `json:"index"`

	// RelevanceScore is a 0-1 normalized relevance score.
	RelevanceScore float64 `json:"relevance_score"`
}

// Provider defines the unified rerank provider interface.
type Provider interface {
	// RerankSimple scores documents against the query, returning the topN
	// most relevant (all documents when topN <= 0), highest score first.
	RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]Result, error)

	// Name returns the provider name.
	Name() string

	// MaxDocuments returns the maximum documents per request.
	MaxDocuments() int
}
