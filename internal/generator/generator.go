// Package generator produces natural-language answers, follow-up questions,
// and summaries over retrieved document context using a text generation
// backend.
package generator

import "context"

// Options holds generation parameters passed through to the backend.
type Options struct {
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Generator is a text generation backend.
type Generator interface {
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	// Model identifies the underlying model for result attribution.
	Model() string
}

// Failure wraps a backend error. Callers that can degrade gracefully (an
// apologetic canned answer instead of an error) detect it with errors.As.
type Failure struct {
	Err error
}

func (e *Failure) Error() string { return "generation failed: " + e.Err.Error() }

func (e *Failure) Unwrap() error { return e.Err }
