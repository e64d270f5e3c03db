// Package tokenizer provides the subword tokenizer used by the chunking
// stage. The tiktoken implementation is the production tokenizer; tests
// inject deterministic fakes through the Tokenizer interface.
package tokenizer
