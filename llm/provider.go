// Package llm provides the language-model completion capability.
//
// The answer composer only needs single-turn completion: one rendered prompt
// in, one textual completion out. Streaming, tool calling, and multi-turn
// message protocols are deliberately outside this interface.
package llm

import "context"

// Provider is the completion capability interface.
type Provider interface {
	// Complete generates a single textual completion for the prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name returns the provider name.
	Name() string
}
