package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/langpipe/langpipe"
)

// Handler implements langpipe.Handler for the Gemini generateContent API.
type Handler struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) HandlerOption {
	return func(h *Handler) { h.baseURL = u }
}

// WithHTTPClient overrides the HTTP client (tests point it at a fake server).
func WithHTTPClient(c *http.Client) HandlerOption {
	return func(h *Handler) { h.client = c }
}

// New creates a Gemini handler.
func New(apiKey string, opts ...HandlerOption) *Handler {
	h := &Handler{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Name() string { return "google" }

// Complete sends a buffered generateContent request and returns the
// canonical response.
func (h *Handler) Complete(ctx context.Context, req langpipe.Request) (*langpipe.Response, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", h.baseURL, req.Model)

	resp, err := h.send(ctx, url, BuildBody(req))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, h.wireErr(resp)
	}

	var wire GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, langpipe.MapVendorError(0, "", fmt.Sprintf("google: decode response: %v", err))
	}
	out := ParseResponse(wire)
	if out.Model == "" {
		out.Model = req.Model
	}
	return out, nil
}

// Stream sends a streaming generateContent request and returns a reader of
// canonical chunks.
func (h *Handler) Stream(ctx context.Context, req langpipe.Request) (langpipe.ChunkReader, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", h.baseURL, req.Model)

	resp, err := h.send(ctx, url, BuildBody(req))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, h.wireErr(resp)
	}
	return NewSSEReader(resp.Body), nil
}

func (h *Handler) send(ctx context.Context, url string, body GenerateRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, langpipe.MapVendorError(0, "", fmt.Sprintf("google: marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, langpipe.MapVendorError(0, "", fmt.Sprintf("google: create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", h.apiKey)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, langpipe.MapVendorError(0, "", fmt.Sprintf("google: %v", err))
	}
	return resp, nil
}

func (h *Handler) wireErr(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var env ErrorResponse
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		return langpipe.MapVendorError(resp.StatusCode, env.Error.Status, env.Error.Message)
	}
	return langpipe.MapVendorError(resp.StatusCode, "", string(bytes.TrimSpace(raw)))
}

var _ langpipe.Handler = (*Handler)(nil)
