package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/llm/tokenizer"
)

// ChunkingConfig controls fragment sizing.
type ChunkingConfig struct {
	// MaxTokens is the upper bound on tokens per fragment.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// OverlapTokens is the number of tokens each window shares with the
	// preceding window of the same paragraph. Must be < MaxTokens.
	OverlapTokens int `yaml:"overlap_tokens" json:"overlap_tokens"`
}

// DefaultChunkingConfig returns the production defaults.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		MaxTokens:     350,
		OverlapTokens: 50,
	}
}

// paragraphSplitRe matches one or more blank lines.
var paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)

// SplitParagraphs splits raw text on blank-line boundaries, trimming
// whitespace and dropping empty results.
func SplitParagraphs(text string) []string {
	parts := paragraphSplitRe.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

// Chunker splits document text into paragraph-scoped, token-bounded,
// overlapping fragments with stable provenance.
type Chunker struct {
	config    ChunkingConfig
	tokenizer tokenizer.Tokenizer
	logger    *zap.Logger
}

// NewChunker creates a chunker. The tokenizer must round-trip Encode/Decode
// so no text is lost at window boundaries.
func NewChunker(config ChunkingConfig, tok tokenizer.Tokenizer, logger *zap.Logger) (*Chunker, error) {
	if config.MaxTokens <= 0 {
		return nil, fmt.Errorf("chunking max tokens must be > 0, got %d", config.MaxTokens)
	}
	if config.OverlapTokens < 0 || config.OverlapTokens >= config.MaxTokens {
		return nil, fmt.Errorf("chunking overlap must be in [0, max tokens), got %d", config.OverlapTokens)
	}
	if tok == nil {
		return nil, fmt.Errorf("chunker requires a tokenizer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{
		config:    config,
		tokenizer: tok,
		logger:    logger.With(zap.String("component", "chunker")),
	}, nil
}

// ChunkParagraph splits one paragraph into consecutive token windows of at
// most MaxTokens tokens. Each window after the first starts OverlapTokens
// tokens before the previous window's end. A paragraph that fits in one
// window yields exactly one chunk with no overlap applied.
func (c *Chunker) ChunkParagraph(paragraph string) ([]string, error) {
	toks, err := c.tokenizer.Encode(paragraph)
	if err != nil {
		return nil, fmt.Errorf("encode paragraph: %w", err)
	}
	if len(toks) == 0 {
		return nil, nil
	}

	chunks := []string{}
	start := 0
	for start < len(toks) {
		end := start + c.config.MaxTokens
		if end > len(toks) {
			end = len(toks)
		}
		text, err := c.tokenizer.Decode(toks[start:end])
		if err != nil {
			return nil, fmt.Errorf("decode chunk window: %w", err)
		}
		chunks = append(chunks, text)
		if end == len(toks) {
			break
		}
		start = end - c.config.OverlapTokens
	}
	return chunks, nil
}

// ChunkDocument splits raw document text into fragments. DocumentID is the
// stable document identifier and path feeds the provenance string.
func (c *Chunker) ChunkDocument(path, documentID, text string) ([]Fragment, error) {
	paragraphs := SplitParagraphs(text)

	fragments := []Fragment{}
	for pIdx, paragraph := range paragraphs {
		chunks, err := c.ChunkParagraph(paragraph)
		if err != nil {
			return nil, fmt.Errorf("chunk paragraph %d of %s: %w", pIdx, documentID, err)
		}
		for cIdx, chunk := range chunks {
			fragments = append(fragments, Fragment{
				ID:             uuid.NewString(),
				DocumentID:     documentID,
				ParagraphIndex: pIdx,
				FragmentIndex:  cIdx,
				Source:         ProvenanceSource(path, pIdx, cIdx),
				Text:           chunk,
			})
		}
	}

	c.logger.Debug("document chunked",
		zap.String("document_id", documentID),
		zap.Int("paragraphs", len(paragraphs)),
		zap.Int("fragments", len(fragments)))

	return fragments, nil
}
