// Package ollama implements local embeddings through an Ollama runtime, for
// memory retrieval without any hosted API key.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/langpipe/langpipe"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "nomic-embed-text"
	defaultDims    = 768
)

// Embedder implements langpipe.Embedder against Ollama's /api/embed.
type Embedder struct {
	model   string
	baseURL string
	dims    int
	client  *http.Client
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) { e.model = model }
}

// WithBaseURL points at a non-local Ollama instance.
func WithBaseURL(u string) Option {
	return func(e *Embedder) { e.baseURL = u }
}

// WithDimensions records the model's output dimensionality.
func WithDimensions(dims int) Option {
	return func(e *Embedder) { e.dims = dims }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedder) { e.client = c }
}

// New creates an Ollama embedder (nomic-embed-text by default).
func New(opts ...Option) *Embedder {
	e := &Embedder{
		model:   defaultModel,
		baseURL: defaultBaseURL,
		dims:    defaultDims,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Embedder) Name() string    { return "ollama" }
func (e *Embedder) Dimensions() int { return e.dims }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed embeds all texts in a single batched request.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama embed: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, langpipe.MapVendorError(resp.StatusCode, "", string(bytes.TrimSpace(raw)))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ollama embed: decode response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(parsed.Embeddings), len(texts))
	}
	return parsed.Embeddings, nil
}

var _ langpipe.Embedder = (*Embedder)(nil)
