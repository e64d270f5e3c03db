package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	candidates []Candidate
	err        error
	lastTopK   int
}

func (f *fakeSearcher) Retrieve(_ context.Context, _ string, topK int) ([]Candidate, error) {
	f.lastTopK = topK
	return f.candidates, f.err
}

type fakeModel struct {
	completion string
	err        error
	calls      int
	lastPrompt string
}

func (f *fakeModel) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	return f.completion, f.err
}

func (f *fakeModel) Name() string { return "fake-model" }

func sourcedCandidate(text, source string) Candidate {
	return Candidate{Text: text, Metadata: CandidateMetadata{Source: source}}
}

func newTestComposer(searcher *fakeSearcher, model *fakeModel) *Composer {
	return NewComposer(DefaultAnswerConfig(), searcher, model, nil, nil)
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{0, 0.0},
		{1, 0.55},
		{2, 0.7},
		{3, 0.85},
		{4, 0.95},
		{5, 0.95},
		{100, 0.95},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Confidence(tt.n), 1e-9, "n=%d", tt.n)
	}
}

func TestAnswerStrictZeroCandidatesRefusesWithoutModel(t *testing.T) {
	searcher := &fakeSearcher{candidates: []Candidate{}}
	model := &fakeModel{completion: "should never be used"}
	c := newTestComposer(searcher, model)

	result, err := c.Answer(context.Background(), AnswerRequest{
		Question: "what is this?",
		Mode:     ModeStrict,
	})
	require.NoError(t, err)

	assert.Equal(t, RefusalAnswer, result.Answer)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.Previews)
	assert.Zero(t, model.calls, "model must not be invoked")
}

func TestAnswerHybridZeroCandidatesInvokesModel(t *testing.T) {
	searcher := &fakeSearcher{candidates: []Candidate{}}
	model := &fakeModel{completion: "general knowledge answer"}
	c := newTestComposer(searcher, model)

	result, err := c.Answer(context.Background(), AnswerRequest{
		Question: "q",
		Mode:     ModeHybrid,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, "general knowledge answer", result.Answer)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestAnswerDefaultsToStrictMode(t *testing.T) {
	searcher := &fakeSearcher{candidates: []Candidate{}}
	model := &fakeModel{}
	c := newTestComposer(searcher, model)

	result, err := c.Answer(context.Background(), AnswerRequest{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, RefusalAnswer, result.Answer)
	assert.Zero(t, model.calls)
}

func TestAnswerUsesPoolK(t *testing.T) {
	searcher := &fakeSearcher{candidates: candidatesNamed("a")}
	model := &fakeModel{completion: "ok"}
	c := newTestComposer(searcher, model)

	_, err := c.Answer(context.Background(), AnswerRequest{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, 6, searcher.lastTopK)
}

func TestAnswerKeepsCitationsByDefault(t *testing.T) {
	searcher := &fakeSearcher{candidates: candidatesNamed("ctx")}
	model := &fakeModel{completion: "Widgets spin. [Chunk 0]"}
	c := newTestComposer(searcher, model)

	result, err := c.Answer(context.Background(), AnswerRequest{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "Widgets spin. [Chunk 0]", result.Answer)
}

func TestAnswerStripsCitationsWhenHidden(t *testing.T) {
	searcher := &fakeSearcher{candidates: candidatesNamed("ctx")}
	model := &fakeModel{completion: "Widgets spin. [Chunk 0] They also glow. [Chunk 1]"}
	c := newTestComposer(searcher, model)

	result, err := c.Answer(context.Background(), AnswerRequest{
		Question:      "q",
		HideCitations: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Widgets spin.  They also glow.", result.Answer)
}

func TestAnswerConfidenceRounded(t *testing.T) {
	searcher := &fakeSearcher{candidates: candidatesNamed("a", "b", "c")}
	model := &fakeModel{completion: "ok"}
	c := newTestComposer(searcher, model)

	result, err := c.Answer(context.Background(), AnswerRequest{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, 0.85, result.Confidence)
}

func TestAnswerPreviewsTruncated(t *testing.T) {
	long := strings.Repeat("x", 400)
	searcher := &fakeSearcher{candidates: []Candidate{
		sourcedCandidate(long, "doc.txt#para0:chunk0"),
		sourcedCandidate("short", "doc.txt#para1:chunk0"),
	}}
	model := &fakeModel{completion: "ok"}
	c := newTestComposer(searcher, model)

	result, err := c.Answer(context.Background(), AnswerRequest{Question: "q"})
	require.NoError(t, err)
	require.Len(t, result.Previews, 2)

	assert.Equal(t, 0, result.Previews[0].Index)
	assert.Equal(t, "doc.txt#para0:chunk0", result.Previews[0].Source)
	assert.Len(t, result.Previews[0].Text, 303)
	assert.True(t, strings.HasSuffix(result.Previews[0].Text, "..."))

	assert.Equal(t, 1, result.Previews[1].Index)
	assert.Equal(t, "short", result.Previews[1].Text)
}

func TestAnswerPreviewsTruncateByRunesNotBytes(t *testing.T) {
	// Two bytes per rune; a byte-based cut would split a rune at offset 300.
	long := "a" + strings.Repeat("é", 400)
	searcher := &fakeSearcher{candidates: []Candidate{
		sourcedCandidate(long, "doc.txt#para0:chunk0"),
	}}
	model := &fakeModel{completion: "ok"}
	c := newTestComposer(searcher, model)

	result, err := c.Answer(context.Background(), AnswerRequest{Question: "q"})
	require.NoError(t, err)
	require.Len(t, result.Previews, 1)

	text := result.Previews[0].Text
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, 303, utf8.RuneCountInString(text))
	assert.True(t, strings.HasPrefix(long, strings.TrimSuffix(text, "...")))
}

func TestAnswerPromptContainsContextAndQuestion(t *testing.T) {
	searcher := &fakeSearcher{candidates: []Candidate{
		sourcedCandidate("widgets spin clockwise", "manual.txt#para3:chunk0"),
	}}
	model := &fakeModel{completion: "ok"}
	c := newTestComposer(searcher, model)

	_, err := c.Answer(context.Background(), AnswerRequest{Question: "how do widgets spin?"})
	require.NoError(t, err)

	assert.Contains(t, model.lastPrompt, "[Chunk 0] (Source: manual.txt#para3:chunk0)")
	assert.Contains(t, model.lastPrompt, "widgets spin clockwise")
	assert.Contains(t, model.lastPrompt, "Question: how do widgets spin?")
	assert.Contains(t, model.lastPrompt, RefusalAnswer)
}

func TestAnswerHybridPromptPermitsSynthesis(t *testing.T) {
	searcher := &fakeSearcher{candidates: candidatesNamed("ctx")}
	model := &fakeModel{completion: "ok"}
	c := newTestComposer(searcher, model)

	_, err := c.Answer(context.Background(), AnswerRequest{
		Question: "q",
		Mode:     ModeHybrid,
	})
	require.NoError(t, err)
	assert.Contains(t, model.lastPrompt, "outside knowledge")
	assert.NotContains(t, model.lastPrompt, RefusalAnswer)
}

func TestAnswerHistoryWindow(t *testing.T) {
	searcher := &fakeSearcher{candidates: candidatesNamed("ctx")}
	model := &fakeModel{completion: "ok"}
	c := newTestComposer(searcher, model)

	history := []Turn{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
		{Question: "q3", Answer: "a3"},
		{Question: "q4", Answer: "a4"},
		{Question: "q5", Answer: "a5"},
	}
	_, err := c.Answer(context.Background(), AnswerRequest{
		Question: "q6",
		History:  history,
	})
	require.NoError(t, err)

	// Only the last four turns are rendered.
	assert.NotContains(t, model.lastPrompt, "User: q1")
	assert.Contains(t, model.lastPrompt, "User: q2\nBot: a2")
	assert.Contains(t, model.lastPrompt, "User: q5\nBot: a5")
}

func TestAnswerNoHistoryOmitsSection(t *testing.T) {
	searcher := &fakeSearcher{candidates: candidatesNamed("ctx")}
	model := &fakeModel{completion: "ok"}
	c := newTestComposer(searcher, model)

	_, err := c.Answer(context.Background(), AnswerRequest{Question: "q"})
	require.NoError(t, err)
	assert.NotContains(t, model.lastPrompt, "Conversation so far:")
}

func TestAnswerSystemPromptPrefix(t *testing.T) {
	searcher := &fakeSearcher{candidates: candidatesNamed("ctx")}
	model := &fakeModel{completion: "ok"}
	c := newTestComposer(searcher, model)

	_, err := c.Answer(context.Background(), AnswerRequest{
		Question:     "q",
		SystemPrompt: "You speak like a pirate.",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(model.lastPrompt, "You speak like a pirate."))
}

func TestAnswerPropagatesModelError(t *testing.T) {
	searcher := &fakeSearcher{candidates: candidatesNamed("ctx")}
	model := &fakeModel{err: errors.New("completion failed")}
	c := newTestComposer(searcher, model)

	_, err := c.Answer(context.Background(), AnswerRequest{Question: "q"})
	require.Error(t, err)
}

func TestAnswerPropagatesRetrievalError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("index down")}
	model := &fakeModel{}
	c := newTestComposer(searcher, model)

	_, err := c.Answer(context.Background(), AnswerRequest{Question: "q"})
	require.Error(t, err)
	assert.Zero(t, model.calls)
}

func TestStripCitations(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single marker", "fact [Chunk 1]", "fact "},
		{"multiple markers", "[Chunk 1] a [Chunk 23] b", " a  b"},
		{"no markers", "plain text", "plain text"},
		{"non-integer marker kept", "see [Chunk x] here", "see [Chunk x] here"},
		{"missing space kept", "[Chunk1]", "[Chunk1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCitations(tt.in))
		})
	}
}
