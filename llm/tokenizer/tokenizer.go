package tokenizer

// Tokenizer is the unified subword tokenization interface.
//
// The chunking stage depends on Encode/Decode round-tripping: decoding a
// slice of token ids must reproduce the corresponding input text, so that
// overlapping chunk windows lose no information at the boundary.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)

	// Encode converts text into a list of token ids.
	Encode(text string) ([]int, error)

	// Decode converts token ids back into text.
	Decode(tokens []int) (string, error)

	// Name returns the tokenizer name.
	Name() string
}
