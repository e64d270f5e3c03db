package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/llm/embedding"
	"github.com/BaSui01/docqa/types"
)

// Indexer embeds fragments in batches and writes them to the vector index
// and, when a ledger is configured, to the durable fragment ledger.
type Indexer struct {
	embedder  embedding.Provider
	store     VectorStore
	ledger    *FragmentStore
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewIndexer creates an indexer. Ledger and collector may be nil.
func NewIndexer(embedder embedding.Provider, store VectorStore, ledger *FragmentStore, collector *metrics.Collector, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		embedder:  embedder,
		store:     store,
		ledger:    ledger,
		collector: collector,
		logger:    logger.With(zap.String("component", "indexer")),
	}
}

// IndexFragments embeds and indexes the given fragments. Fragments are
// written once; re-indexing a fragment ID replaces the stored entry.
func (ix *Indexer) IndexFragments(ctx context.Context, fragments []Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	batchSize := ix.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = len(fragments)
	}

	for start := 0; start < len(fragments); start += batchSize {
		end := start + batchSize
		if end > len(fragments) {
			end = len(fragments)
		}
		batch := fragments[start:end]

		texts := make([]string, len(batch))
		for i, f := range batch {
			texts[i] = f.Text
		}

		vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(batch) {
			return types.NewError(types.ErrEmbeddingProvider,
				fmt.Sprintf("expected %d vectors, got %d", len(batch), len(vectors))).
				WithProvider(ix.embedder.Name())
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}

		if err := ix.store.Upsert(ctx, batch); err != nil {
			return err
		}
		if ix.ledger != nil {
			if err := ix.ledger.SaveAll(ctx, batch); err != nil {
				return err
			}
		}
		ix.collector.FragmentsIndexed(len(batch))
	}

	ix.logger.Info("fragments indexed",
		zap.Int("fragments", len(fragments)),
		zap.String("embedder", ix.embedder.Name()))
	return nil
}
