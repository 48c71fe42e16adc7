package llm

import "context"

// Provider is a text generation backend.
type Provider interface {
	// Name returns the provider name.
	Name() string
	// Generate sends the prompt and returns the complete response text.
	Generate(ctx context.Context, req *Request) (*Response, error)
}
