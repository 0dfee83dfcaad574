package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/langpipe/langpipe"
)

func TestHandler_Complete(t *testing.T) {
	var gotAuth string
	var gotBody ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"choices": [{"message": {"role": "assistant", "content": "pong"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`)
	}))
	defer srv.Close()

	h := New("openai", srv.URL, "sk-test", WithHTTPClient(srv.Client()))
	resp, err := h.Complete(context.Background(), langpipe.Request{
		Model:    "gpt-4o",
		Messages: []langpipe.Message{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Completion() != "pong" {
		t.Errorf("expected 'pong', got %q", resp.Completion())
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotBody.Stream {
		t.Error("Complete must not set stream")
	}
	if gotBody.Model != "gpt-4o" {
		t.Errorf("unexpected model %q", gotBody.Model)
	}
}

func TestHandler_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body ChatRequest
		json.NewDecoder(r.Body).Decode(&body)
		if !body.Stream {
			t.Error("Stream must set stream=true")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	h := New("openai", srv.URL, "sk-test", WithHTTPClient(srv.Client()))
	stream, err := h.Stream(context.Background(), langpipe.Request{
		Model:    "gpt-4o",
		Messages: []langpipe.Message{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	chunk, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if chunk.Delta().Content != "hi" {
		t.Errorf("expected 'hi', got %q", chunk.Delta().Content)
	}
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestHandler_RateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error": {"message": "quota exceeded", "type": "rate_limit_exceeded"}}`)
	}))
	defer srv.Close()

	h := New("openai", srv.URL, "sk-test", WithHTTPClient(srv.Client()))
	_, err := h.Complete(context.Background(), langpipe.Request{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *langpipe.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Status != 429 || apiErr.Code != langpipe.CodeRateLimited {
		t.Errorf("unexpected mapping: %+v", apiErr)
	}
	if !strings.Contains(apiErr.Message, "quota exceeded") {
		t.Errorf("vendor message dropped: %q", apiErr.Message)
	}
}

func TestHandler_VendorErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error", "code": "invalid_api_key"}}`)
	}))
	defer srv.Close()

	h := New("openai", srv.URL, "wrong", WithHTTPClient(srv.Client()))
	_, err := h.Complete(context.Background(), langpipe.Request{Model: "gpt-4o"})

	var apiErr *langpipe.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	// The string "code" field wins over "type".
	if apiErr.Code != "invalid_api_key" {
		t.Errorf("expected vendor code kept, got %q", apiErr.Code)
	}
	if apiErr.Status != 401 {
		t.Errorf("expected status 401, got %d", apiErr.Status)
	}
}

func TestHandler_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream unavailable")
	}))
	defer srv.Close()

	h := New("openai", srv.URL, "sk", WithHTTPClient(srv.Client()))
	_, err := h.Complete(context.Background(), langpipe.Request{Model: "gpt-4o"})

	var apiErr *langpipe.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != 502 || !strings.Contains(apiErr.Message, "upstream unavailable") {
		t.Errorf("unexpected mapping: %+v", apiErr)
	}
}
