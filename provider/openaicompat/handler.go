package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/langpipe/langpipe"
)

// Handler implements langpipe.Handler for any OpenAI-compatible API.
// It uses the shared helpers in this package (BuildBody, ParseResponse,
// NewSSEReader) for body building, parsing, and streaming.
type Handler struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHTTPClient overrides the HTTP client (tests point it at a fake server).
func WithHTTPClient(c *http.Client) HandlerOption {
	return func(h *Handler) { h.client = c }
}

// New creates an OpenAI-compatible chat handler.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1",
// "https://api.groq.com/openai/v1", "http://localhost:11434/v1").
// The /chat/completions path is appended automatically.
func New(name, baseURL, apiKey string, opts ...HandlerOption) *Handler {
	h := &Handler{
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the vendor name this handler was constructed for.
func (h *Handler) Name() string { return h.name }

// Complete sends a non-streaming chat request and returns the canonical
// response. When req.Tools is non-empty, the response may carry tool calls.
func (h *Handler) Complete(ctx context.Context, req langpipe.Request) (*langpipe.Response, error) {
	body := BuildBody(req)
	body.Stream = false

	resp, err := h.send(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, h.wireErr(resp)
	}

	var wire ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, langpipe.MapVendorError(0, "", fmt.Sprintf("%s: decode response: %v", h.name, err))
	}
	return ParseResponse(wire), nil
}

// Stream sends a streaming chat request and returns a reader of canonical
// chunks. The caller owns the reader and must Close it.
func (h *Handler) Stream(ctx context.Context, req langpipe.Request) (langpipe.ChunkReader, error) {
	body := BuildBody(req)
	body.Stream = true

	resp, err := h.send(ctx, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, h.wireErr(resp)
	}
	return NewSSEReader(resp.Body), nil
}

func (h *Handler) send(ctx context.Context, body ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, langpipe.MapVendorError(0, "", fmt.Sprintf("%s: marshal request: %v", h.name, err))
	}

	url := h.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, langpipe.MapVendorError(0, "", fmt.Sprintf("%s: create request: %v", h.name, err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, langpipe.MapVendorError(0, "", fmt.Sprintf("%s: %v", h.name, err))
	}
	return resp, nil
}

// wireErr reads the error body and maps it to the canonical APIError.
func (h *Handler) wireErr(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var env ErrorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		code := env.Error.Type
		if s, ok := env.Error.Code.(string); ok && s != "" {
			code = s
		}
		return langpipe.MapVendorError(resp.StatusCode, code, env.Error.Message)
	}
	return langpipe.MapVendorError(resp.StatusCode, "", string(bytes.TrimSpace(raw)))
}

// Compile-time interface check.
var _ langpipe.Handler = (*Handler)(nil)
