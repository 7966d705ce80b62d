package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// failureSentinels mark a 200-status response that is really an upstream
// failure. Some gateways embed rate-limit messages in the body instead of
// returning an error status.
var failureSentinels = []string{
	"Error:",
	"API Response:",
}

var rateLimitMarkers = []string{
	"rate limit",
	"rate_limit",
	"quota exceeded",
	"too many requests",
}

// Gateway chains a primary provider and an optional fallback. A provider
// invocation fails when it returns an error, when its text begins with a
// failure sentinel or contains a rate-limit marker, or — for embeddings —
// when every returned vector is zero.
type Gateway struct {
	primary  Provider
	fallback Provider
}

// NewGateway creates a gateway. fallback may be nil.
func NewGateway(primary, fallback Provider) *Gateway {
	return &Gateway{primary: primary, fallback: fallback}
}

// Available reports whether any provider is configured.
func (g *Gateway) Available() bool {
	return g != nil && g.primary != nil
}

// Generate runs the provider chain for a generation request.
func (g *Gateway) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	text, err := g.primary.Generate(ctx, prompt, opts)
	if err == nil {
		reason := textFailure(text)
		if reason == "" {
			return text, nil
		}
		err = fmt.Errorf("provider %s returned failure text: %s", g.primary.Name(), reason)
	}

	if g.fallback == nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	slog.Warn("primary LLM provider failed, trying fallback",
		"primary", g.primary.Name(), "fallback", g.fallback.Name(), "error", err)

	text, ferr := g.fallback.Generate(ctx, prompt, opts)
	if ferr != nil {
		return "", fmt.Errorf("generation failed on both providers: %w (primary: %v)", ferr, err)
	}
	if reason := textFailure(text); reason != "" {
		return "", fmt.Errorf("fallback provider %s returned failure text: %s (primary: %v)", g.fallback.Name(), reason, err)
	}
	return text, nil
}

// Embed runs the provider chain for an embedding request.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := g.primary.Embed(ctx, texts)
	if err == nil && !allZero(vectors) {
		return vectors, nil
	}
	if err == nil {
		err = fmt.Errorf("provider %s returned all-zero embeddings", g.primary.Name())
	}

	if g.fallback == nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	slog.Warn("primary embedding provider failed, trying fallback",
		"primary", g.primary.Name(), "fallback", g.fallback.Name(), "error", err)

	vectors, ferr := g.fallback.Embed(ctx, texts)
	if ferr != nil {
		return nil, fmt.Errorf("embedding failed on both providers: %w (primary: %v)", ferr, err)
	}
	if allZero(vectors) {
		return nil, fmt.Errorf("fallback provider %s returned all-zero embeddings (primary: %v)", g.fallback.Name(), err)
	}
	return vectors, nil
}

// Dimension returns the primary provider's embedding dimensionality.
func (g *Gateway) Dimension() int {
	return g.primary.Dimension()
}

// textFailure returns the failure reason embedded in a response text, or ""
// when the text is a genuine result.
func textFailure(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, sentinel := range failureSentinels {
		if strings.HasPrefix(trimmed, sentinel) {
			return "sentinel " + sentinel
		}
	}
	lower := strings.ToLower(trimmed)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lower, marker) {
			return "rate limited"
		}
	}
	return ""
}

// allZero reports whether every vector has only zero components. Embedding
// backends signal failure this way instead of erroring.
func allZero(vectors [][]float32) bool {
	if len(vectors) == 0 {
		return true
	}
	for _, vector := range vectors {
		for _, v := range vector {
			if v != 0 {
				return false
			}
		}
	}
	return true
}
