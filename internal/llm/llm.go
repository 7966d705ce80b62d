// Package llm provides Large Language Model providers for chat-style
// generation and embedding, and a failover gateway chaining them.
package llm

import "context"

// GenerateOptions configures a generation request.
type GenerateOptions struct {
	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness in generation (0.0 = deterministic).
	Temperature float32

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int
}

// Provider is one LLM backend offering both capabilities the engine needs.
type Provider interface {
	// Generate sends a prompt and returns the complete text response.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Embed generates embedding vectors for the given texts, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimensionality.
	Dimension() int

	// Name identifies the provider in logs.
	Name() string
}
