package rag

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/llm"
)

// Mode selects the citation policy of the composed prompt.
type Mode string

const (
	// ModeStrict constrains the model to the supplied context and mandates
	// citation markers.
	ModeStrict Mode = "strict"

	// ModeHybrid prefers the context but permits synthesis beyond it with a
	// disclaimer.
	ModeHybrid Mode = "hybrid"
)

// RefusalAnswer is the fixed sentence returned in strict mode when nothing
// was retrieved. It is an explicit documented override, not error masking.
const RefusalAnswer = "I don't have information about this in the document."

// citationRe matches citation markers like "[Chunk 3]".
var citationRe = regexp.MustCompile(`\[Chunk \d+\]`)

// AnswerConfig controls answer composition.
type AnswerConfig struct {
	// HistoryWindow is the number of most recent turns rendered into the
	// prompt.
	HistoryWindow int `yaml:"history_window" json:"history_window"`

	// PreviewChars is the character budget of candidate previews.
	PreviewChars int `yaml:"preview_chars" json:"preview_chars"`

	// PoolK is how many candidates the composer retrieves for answering.
	PoolK int `yaml:"pool_k" json:"pool_k"`
}

// DefaultAnswerConfig returns the production defaults.
func DefaultAnswerConfig() AnswerConfig {
	return AnswerConfig{
		HistoryWindow: 4,
		PreviewChars:  300,
		PoolK:         6,
	}
}

// AnswerRequest is one question against the corpus. History is caller-owned
// and never mutated; only the most recent HistoryWindow turns are read.
type AnswerRequest struct {
	Question string `json:"question"`
	History  []Turn `json:"history,omitempty"`
	Mode     Mode   `json:"mode,omitempty"`

	// HideCitations strips the "[Chunk N]" markers from the answer text.
	// The zero value keeps them, matching the original front end's
	// show-citations default.
	HideCitations bool `json:"hide_citations,omitempty"`

	// SystemPrompt optionally prefixes the composed prompt with
	// caller-supplied instructions.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Searcher is the retrieval dependency of the composer, satisfied by
// *Retriever.
type Searcher interface {
	Retrieve(ctx context.Context, question string, topK int) ([]Candidate, error)
}

// Composer retrieves candidates, builds a citation-constrained prompt,
// invokes the language model, and assembles the answer result.
type Composer struct {
	config    AnswerConfig
	searcher  Searcher
	model     llm.Provider
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewComposer creates a composer. The metrics collector may be nil.
func NewComposer(config AnswerConfig, searcher Searcher, model llm.Provider, collector *metrics.Collector, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		config:    config,
		searcher:  searcher,
		model:     model,
		collector: collector,
		logger:    logger.With(zap.String("component", "composer")),
	}
}

// Confidence maps a candidate count to the retrieval-support heuristic:
// 0.0 for zero candidates, otherwise min(0.4 + 0.15*min(n,4), 0.95).
// Monotone non-decreasing in n and capped below 1.0; not a calibrated
// probability.
func Confidence(n int) float64 {
	if n <= 0 {
		return 0.0
	}
	if n > 4 {
		n = 4
	}
	c := 0.4 + 0.15*float64(n)
	if c > 0.95 {
		c = 0.95
	}
	return c
}

// Answer runs retrieval and composition for one request.
func (c *Composer) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	start := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = ModeStrict
	}

	candidates, err := c.searcher.Retrieve(ctx, req.Question, c.config.PoolK)
	if err != nil {
		return nil, err
	}

	confidence := Confidence(len(candidates))

	// An empty context makes any model answer ungrounded by definition, so
	// strict mode refuses without invoking the model at all.
	if mode == ModeStrict && len(candidates) == 0 {
		c.collector.AnswerObserved(string(mode), "refused", time.Since(start))
		c.logger.Info("strict refusal, no candidates", zap.String("question", req.Question))
		return &AnswerResult{
			Answer:     RefusalAnswer,
			Confidence: 0.0,
			Chunks:     []Candidate{},
			Previews:   []Preview{},
		}, nil
	}

	prompt := c.buildPrompt(mode, req, candidates)
	completion, err := c.model.Complete(ctx, prompt)
	if err != nil {
		c.collector.AnswerObserved(string(mode), "error", time.Since(start))
		return nil, err
	}

	answer := strings.TrimSpace(completion)
	if req.HideCitations {
		answer = strings.TrimSpace(StripCitations(answer))
	}

	c.collector.AnswerObserved(string(mode), "answered", time.Since(start))
	return &AnswerResult{
		Answer:     answer,
		Confidence: math.Round(confidence*100) / 100,
		Chunks:     candidates,
		Previews:   c.buildPreviews(candidates),
	}, nil
}

// StripCitations removes every "[Chunk N]" marker from text. Pure text
// transform, independent of prompt construction.
func StripCitations(text string) string {
	return citationRe.ReplaceAllString(text, "")
}

// renderHistory formats the most recent turns as alternating User/Bot lines.
// Empty history renders as the empty string.
func (c *Composer) renderHistory(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	window := history
	if len(window) > c.config.HistoryWindow {
		window = window[len(window)-c.config.HistoryWindow:]
	}
	var b strings.Builder
	for _, turn := range window {
		fmt.Fprintf(&b, "User: %s\nBot: %s\n", turn.Question, turn.Answer)
	}
	return b.String()
}

func (c *Composer) buildPrompt(mode Mode, req AnswerRequest, candidates []Candidate) string {
	var b strings.Builder

	if req.SystemPrompt != "" {
		b.WriteString(strings.TrimSpace(req.SystemPrompt))
		b.WriteString("\n\n")
	}

	switch mode {
	case ModeHybrid:
		b.WriteString("You are a document question answering assistant. " +
			"Prefer the context below when answering. You may draw on outside " +
			"knowledge to synthesize a fuller answer, but when you do, add a " +
			"one-line disclaimer that part of the answer goes beyond the " +
			"document. Cite supporting fragments with markers like [Chunk 0] " +
			"where possible.\n\n")
	default:
		b.WriteString("You are a document question answering assistant. " +
			"Answer using ONLY the context below. If the context does not " +
			"contain the answer, reply exactly: \"" + RefusalAnswer + "\" " +
			"Cite every statement with the marker of the fragment that " +
			"supports it, like [Chunk 0].\n\n")
	}

	if history := c.renderHistory(req.History); history != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}

	// Chunk markers are zero-based, matching the fragment numbering the
	// previews report.
	b.WriteString("Context:\n")
	for i, cand := range candidates {
		fmt.Fprintf(&b, "[Chunk %d] (Source: %s)\n%s\n\n", i, cand.Metadata.Source, cand.Text)
	}

	fmt.Fprintf(&b, "Question: %s\nAnswer:", req.Question)
	return b.String()
}

func (c *Composer) buildPreviews(candidates []Candidate) []Preview {
	previews := make([]Preview, 0, len(candidates))
	for i, cand := range candidates {
		previews = append(previews, Preview{
			Index:  i,
			Source: cand.Metadata.Source,
			Text:   truncateRunes(cand.Text, c.config.PreviewChars),
		})
	}
	return previews
}

// truncateRunes caps text at limit characters, not bytes, so multi-byte
// UTF-8 text is never cut mid-rune.
func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
