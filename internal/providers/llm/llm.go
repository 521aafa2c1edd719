package llm

import "context"

// Provider generates interviewer questions and evaluation reports.
type Provider interface {
	// Complete returns the model's full response to a prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}
