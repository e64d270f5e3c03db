package rag

import (
	"context"
	"sort"
	"sync"
)

// VectorStore is the vector index contract. Upsert is idempotent by
// fragment ID; Query returns up to nResults nearest candidates by cosine
// similarity with no ordering guarantee among exact ties. Querying an index
// holding fewer than nResults fragments returns everything available, and
// querying an empty index returns an empty slice, never an error.
type VectorStore interface {
	Upsert(ctx context.Context, fragments []Fragment) error
	Query(ctx context.Context, embedding []float64, nResults int) ([]Candidate, error)
	Count(ctx context.Context) (int, error)
}

// InMemoryVectorStore is a process-local VectorStore for tests and small
// corpora. Safe for concurrent use.
type InMemoryVectorStore struct {
	mu        sync.RWMutex
	fragments []Fragment
	byID      map[string]int
}

// NewInMemoryVectorStore returns an empty in-memory index.
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{byID: map[string]int{}}
}

// Upsert inserts fragments, replacing any existing fragment with the same ID.
func (s *InMemoryVectorStore) Upsert(_ context.Context, fragments []Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fragments {
		if idx, ok := s.byID[f.ID]; ok {
			s.fragments[idx] = f
			continue
		}
		s.byID[f.ID] = len(s.fragments)
		s.fragments = append(s.fragments, f)
	}
	return nil
}

// Query returns up to nResults candidates ordered by descending cosine
// similarity. Embeddings are L2-normalized, so the dot product is the
// cosine similarity.
func (s *InMemoryVectorStore) Query(_ context.Context, embedding []float64, nResults int) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if nResults <= 0 || len(s.fragments) == 0 {
		return []Candidate{}, nil
	}

	candidates := make([]Candidate, 0, len(s.fragments))
	for _, f := range s.fragments {
		candidates = append(candidates, Candidate{
			Text: f.Text,
			Metadata: CandidateMetadata{
				DocumentID:     f.DocumentID,
				Source:         f.Source,
				ParagraphIndex: f.ParagraphIndex,
				FragmentIndex:  f.FragmentIndex,
			},
			Score: dot(embedding, f.Embedding),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > nResults {
		candidates = candidates[:nResults]
	}
	return candidates, nil
}

// Count returns the number of indexed fragments.
func (s *InMemoryVectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fragments), nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
