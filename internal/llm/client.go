// Package llm abstracts the language model behind a single completion
// interface. The model is an opaque service: prompt in, text out, one
// error category.
package llm

import "context"

// Completer produces a text completion for a prompt. Implementations
// must honor context cancellation.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}
