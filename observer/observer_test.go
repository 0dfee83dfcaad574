package observer

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/langpipe/langpipe"
)

// mockHandler for observer tests.
type mockHandler struct {
	name   string
	resp   *langpipe.Response
	chunks []langpipe.Chunk
	err    error
}

func (m *mockHandler) Name() string { return m.name }

func (m *mockHandler) Complete(_ context.Context, _ langpipe.Request) (*langpipe.Response, error) {
	return m.resp, m.err
}

func (m *mockHandler) Stream(_ context.Context, _ langpipe.Request) (langpipe.ChunkReader, error) {
	if m.err != nil {
		return nil, m.err
	}
	return langpipe.NewChunksReader(m.chunks), nil
}

type mockEmbedder struct {
	vecs [][]float32
	err  error
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return m.vecs, m.err
}
func (m *mockEmbedder) Dimensions() int { return 3 }
func (m *mockEmbedder) Name() string    { return "mock-embed" }

type mockRegistry struct {
	handler langpipe.Handler
}

func (m *mockRegistry) Resolve(_ string) (langpipe.HandlerFactory, langpipe.Capability, error) {
	return func(string) langpipe.Handler { return m.handler }, langpipe.Capability{}, nil
}

// testInstruments creates Instruments over the global OTEL providers, which
// are no-ops by default. Safe for testing delegation behavior without a
// backend.
func testInstruments(t *testing.T) *Instruments {
	t.Helper()
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	return inst
}

func TestWrapHandler_Complete(t *testing.T) {
	want := &langpipe.Response{
		ID:      "resp_1",
		Choices: []langpipe.Choice{{Message: langpipe.AssistantMessage("hello")}},
		Usage:   langpipe.Usage{TotalTokens: 15},
	}
	h := WrapHandler(&mockHandler{name: "p", resp: want}, testInstruments(t))

	got, err := h.Complete(context.Background(), langpipe.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Completion() != "hello" {
		t.Errorf("Completion = %q", got.Completion())
	}
	if h.Name() != "p" {
		t.Errorf("Name = %q", h.Name())
	}
}

func TestWrapHandler_CompleteError(t *testing.T) {
	wantErr := errors.New("provider unavailable")
	h := WrapHandler(&mockHandler{name: "p", err: wantErr}, testInstruments(t))

	_, err := h.Complete(context.Background(), langpipe.Request{Model: "m"})
	if !errors.Is(err, wantErr) {
		t.Errorf("Complete error = %v, want %v", err, wantErr)
	}
}

func TestWrapHandler_StreamPassthrough(t *testing.T) {
	chunks := []langpipe.Chunk{
		{Choices: []langpipe.ChunkChoice{{Delta: langpipe.Delta{Content: "a"}}}},
		{Choices: []langpipe.ChunkChoice{{Delta: langpipe.Delta{Content: "b"}}}},
	}
	h := WrapHandler(&mockHandler{name: "p", chunks: chunks}, testInstruments(t))

	stream, err := h.Stream(context.Background(), langpipe.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var got string
	for {
		c, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		got += c.Delta().Content
	}
	if got != "ab" {
		t.Errorf("streamed %q", got)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestWrapRegistry_InstrumentsResolvedHandlers(t *testing.T) {
	inner := &mockHandler{name: "p", resp: &langpipe.Response{}}
	reg := WrapRegistry(&mockRegistry{handler: inner}, testInstruments(t))

	factory, _, err := reg.Resolve("openai:gpt-4o")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	h := factory("key")
	if _, ok := h.(*ObservedHandler); !ok {
		t.Fatalf("resolved handler %T is not instrumented", h)
	}
	if h.Name() != "p" {
		t.Errorf("Name = %q", h.Name())
	}
}

func TestWrapEmbedder(t *testing.T) {
	want := [][]float32{{1, 2, 3}}
	e := WrapEmbedder(&mockEmbedder{vecs: want}, testInstruments(t))

	got, err := e.Embed(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 1 || got[0][0] != 1 {
		t.Errorf("vectors = %v", got)
	}
	if e.Dimensions() != 3 || e.Name() != "mock-embed" {
		t.Errorf("metadata passthrough broken: %d %q", e.Dimensions(), e.Name())
	}
}

func TestInstruments_HaveLogger(t *testing.T) {
	inst := testInstruments(t)
	if inst.Logger == nil {
		t.Fatal("instruments carry no logger")
	}
}
