package rag

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/types"
)

// Ingestor turns UTF-8 text files into pre-embedding fragments.
type Ingestor struct {
	chunker   *Chunker
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewIngestor creates an ingestor. The metrics collector may be nil.
func NewIngestor(chunker *Chunker, collector *metrics.Collector, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		chunker:   chunker,
		collector: collector,
		logger:    logger.With(zap.String("component", "ingestor")),
	}
}

// DocumentID derives the stable document identifier from a file path: the
// base name without its extension.
func DocumentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IngestFile reads one UTF-8 text file and returns its fragments. Unreadable
// or non-text input fails the document with an ingestion error; no paragraph
// is silently skipped.
func (in *Ingestor) IngestFile(path string) ([]Fragment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		in.collector.IngestionFailed()
		return nil, types.NewError(types.ErrIngestion, "read document "+path).WithCause(err)
	}
	if !utf8.Valid(raw) {
		in.collector.IngestionFailed()
		return nil, types.NewError(types.ErrIngestion, "document is not valid UTF-8: "+path)
	}

	fragments, err := in.chunker.ChunkDocument(path, DocumentID(path), string(raw))
	if err != nil {
		in.collector.IngestionFailed()
		return nil, types.NewError(types.ErrIngestion, "chunk document "+path).WithCause(err)
	}

	in.collector.DocumentIngested()
	in.logger.Info("document ingested",
		zap.String("path", path),
		zap.Int("fragments", len(fragments)))
	return fragments, nil
}

// IngestDir ingests every .txt and .md file under dir. A document that fails
// to ingest is logged and skipped; it never aborts the rest of the batch.
// The returned error is non-nil only when the directory itself is unreadable.
func (in *Ingestor) IngestDir(dir string) ([]Fragment, error) {
	var all []Fragment
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTextFile(path) {
			return nil
		}
		fragments, ferr := in.IngestFile(path)
		if ferr != nil {
			in.logger.Warn("skipping document", zap.String("path", path), zap.Error(ferr))
			return nil
		}
		all = append(all, fragments...)
		return nil
	})
	if err != nil {
		return nil, types.NewError(types.ErrIngestion, "walk corpus directory "+dir).WithCause(err)
	}
	return all, nil
}

func isTextFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}
