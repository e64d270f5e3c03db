package rag

import "fmt"

// Fragment is the immutable unit of retrievable text. Fragments are created
// in batch during ingestion, embedded in batch, written once to the index,
// and never mutated afterwards; re-ingestion replaces by ID.
type Fragment struct {
	// ID is globally unique, assigned at creation, never reused.
	ID string `json:"id"`

	// DocumentID is the stable identifier of the source document
	// (filename stem).
	DocumentID string `json:"document_id"`

	// ParagraphIndex and FragmentIndex locate the fragment within its
	// document.
	ParagraphIndex int `json:"paragraph_index"`
	FragmentIndex  int `json:"fragment_index"`

	// Source is the provenance string "{path}#para{P}:chunk{C}".
	Source string `json:"source"`

	// Text is the token-bounded slice of one paragraph.
	Text string `json:"text"`

	// Embedding is the L2-normalized vector, present only after the
	// embedding stage. All fragments in one index generation must be
	// embedded with the same model configuration.
	Embedding []float64 `json:"embedding,omitempty"`
}

// ProvenanceSource builds the provenance string for a fragment position.
func ProvenanceSource(path string, paragraphIndex, fragmentIndex int) string {
	return fmt.Sprintf("%s#para%d:chunk%d", path, paragraphIndex, fragmentIndex)
}

// CandidateMetadata is the stored metadata returned with a retrieved
// candidate.
type CandidateMetadata struct {
	DocumentID     string `json:"doc_id"`
	Source         string `json:"source"`
	ParagraphIndex int    `json:"paragraph_index"`
	FragmentIndex  int    `json:"fragment_index"`
}

// Candidate is an ephemeral, query-scoped retrieval result. Candidate lists
// within one retrieval call never contain two entries with the same Text.
type Candidate struct {
	Text     string            `json:"text"`
	Metadata CandidateMetadata `json:"metadata"`

	// Score is the similarity from the vector search, replaced by the
	// reranker's relevance estimate when a scorer is configured.
	Score float64 `json:"score,omitempty"`
}

// Turn is one question/answer exchange. The history slice is caller-owned;
// the core only reads a bounded suffix and never mutates it.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Preview is a display-oriented truncation of one candidate. Index is the
// candidate's zero-based position, matching its "[Chunk N]" marker in the
// prompt.
type Preview struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// AnswerResult is the composed answer with its supporting candidates.
type AnswerResult struct {
	Answer string `json:"answer"`

	// Confidence is a bounded heuristic proxy for retrieval support
	// strength in [0, 0.95], not a calibrated probability.
	Confidence float64 `json:"confidence"`

	Chunks   []Candidate `json:"chunks"`
	Previews []Preview   `json:"previews"`
}
