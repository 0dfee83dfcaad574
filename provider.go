package langpipe

import "context"

// Handler is one vendor's chat-completion surface. Implementations live
// under provider/ and are constructed per call with the caller-supplied
// credential; this core never persists keys.
//
// Complete and Stream take the canonical Request; each implementation owns
// the pure transforms to and from its wire format. Transport and vendor
// failures are returned as *APIError.
type Handler interface {
	// Name returns the vendor name (e.g. "openai", "anthropic", "google").
	Name() string
	// Complete sends a buffered request and returns the canonical response.
	Complete(ctx context.Context, req Request) (*Response, error)
	// Stream sends a streaming request and returns a reader of canonical
	// chunks. The reader must be closed by the consumer.
	Stream(ctx context.Context, req Request) (ChunkReader, error)
}

// HandlerFactory constructs a Handler bound to a per-call credential.
type HandlerFactory func(apiKey string) Handler

// Capability reports what a vendor+model pair supports. The Runner consults
// it before attaching tool parameters, silently omitting what a vendor
// cannot accept instead of sending an invalid request.
type Capability struct {
	ToolSupport             bool
	ToolChoiceSupport       bool
	ParallelToolCallSupport bool
	// StreamToolCallSupport is false for vendors that cannot combine tool
	// calls with streaming; the Runner then forces a buffered turn.
	StreamToolCallSupport bool
}

// Registry resolves a "vendor:model" identifier to a handler factory and
// the model's capability flags. Resolution happens once per run, not per
// turn. Implementations must be safe for concurrent use by multiple
// simultaneous sessions.
type Registry interface {
	Resolve(model string) (HandlerFactory, Capability, error)
}

// Embedder turns texts into embedding vectors, one vector per input.
// Backends are selectable (local or remote) and functionally
// interchangeable: both produce equal-dimension vectors for a given
// configuration.
type Embedder interface {
	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the backend name.
	Name() string
}
