package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaBaseURL is the default Ollama API endpoint.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// DefaultOllamaModel is the default generation model.
	DefaultOllamaModel = "llama3.2"

	// DefaultOllamaEmbeddingModel is the default embedding model.
	DefaultOllamaEmbeddingModel = "nomic-embed-text"

	// DefaultOllamaDimension is the embedding dimension of nomic-embed-text.
	DefaultOllamaDimension = 768

	// DefaultTimeout bounds every provider call.
	DefaultTimeout = 60 * time.Second
)

// OllamaProvider implements Provider using the Ollama API.
type OllamaProvider struct {
	baseURL        string
	model          string
	embeddingModel string
	dimension      int
	httpClient     *http.Client
}

// OllamaOption is a functional option for configuring OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithBaseURL sets a custom base URL for the Ollama API.
func WithBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) {
		p.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithModel sets the generation model.
func WithModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		p.model = model
	}
}

// WithEmbeddingModel sets the embedding model and its dimension.
func WithEmbeddingModel(model string, dimension int) OllamaOption {
	return func(p *OllamaProvider) {
		p.embeddingModel = model
		p.dimension = dimension
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) OllamaOption {
	return func(p *OllamaProvider) {
		p.httpClient.Timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) {
		p.httpClient = client
	}
}

// NewOllamaProvider creates a new Ollama provider with the given options.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:        DefaultOllamaBaseURL,
		model:          DefaultOllamaModel,
		embeddingModel: DefaultOllamaEmbeddingModel,
		dimension:      DefaultOllamaDimension,
		httpClient:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Generate sends a prompt to Ollama and returns the complete response.
func (p *OllamaProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		System: opts.SystemPrompt,
		Stream: false,
	}

	options := make(map[string]any)
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(options) > 0 {
		reqBody.Options = options
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return result.Response, nil
}

// Embed generates embedding vectors for the given texts.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (p *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.embeddingModel, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned from ollama")
	}

	vector := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// Dimension returns the embedding dimensionality.
func (p *OllamaProvider) Dimension() int {
	return p.dimension
}

// Name identifies the provider in logs.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Ensure OllamaProvider implements Provider
var _ Provider = (*OllamaProvider)(nil)
