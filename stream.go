package langpipe

import (
	"encoding/json"
	"io"
	"sync"
)

// ChunkReader is a single-consumption stream of canonical chunks. Recv
// returns io.EOF after the final chunk. Close releases the underlying
// transport; it is safe to call more than once.
type ChunkReader interface {
	Recv() (Chunk, error)
	Close() error
}

// Tee duplicates a single-consumption chunk stream into two independently
// readable copies backed by one shared buffer. The source is pulled on
// demand by whichever copy is ahead; a copy that lags replays buffered
// chunks, so neither copy can consume data the other loses. The source is
// closed once both copies are closed.
func Tee(src ChunkReader) (ChunkReader, ChunkReader) {
	t := &teeState{src: src}
	t.cond = sync.NewCond(&t.mu)
	return &teeReader{t: t}, &teeReader{t: t}
}

type teeState struct {
	mu      sync.Mutex
	cond    *sync.Cond
	src     ChunkReader
	buf     []Chunk
	err     error // terminal, io.EOF included
	pulling bool
	closed  int
}

type teeReader struct {
	t      *teeState
	pos    int
	closed bool
}

func (r *teeReader) Recv() (Chunk, error) {
	t := r.t
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if r.closed {
			return Chunk{}, io.EOF
		}
		if r.pos < len(t.buf) {
			c := t.buf[r.pos]
			r.pos++
			return c, nil
		}
		if t.err != nil {
			return Chunk{}, t.err
		}
		if t.pulling {
			// Another cursor is fetching the next chunk; wait for it.
			t.cond.Wait()
			continue
		}
		t.pulling = true
		t.mu.Unlock()
		c, err := t.src.Recv()
		t.mu.Lock()
		t.pulling = false
		if err != nil {
			t.err = err
		} else {
			t.buf = append(t.buf, c)
		}
		t.cond.Broadcast()
	}
}

func (r *teeReader) Close() error {
	t := r.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	t.closed++
	t.cond.Broadcast()
	if t.closed == 2 {
		return t.src.Close()
	}
	return nil
}

// ScanToolCalls reads from a detection copy of a teed stream just far
// enough to decide whether this turn is a tool-call turn. The first
// tool-call delta commits the scan: it then accumulates every tool-call
// fragment through end of stream and returns the completed calls. The
// first plain content delta (with no tool calls seen) returns immediately
// with nil, leaving the rest of the stream for the caller's copy.
func ScanToolCalls(r ChunkReader) ([]ToolCall, error) {
	// args grows by append; fragments for any index may arrive in any
	// order relative to other indexes.
	type partial struct {
		id   string
		name string
		args []byte
	}
	var partials []partial
	collecting := false

	for {
		chunk, err := r.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		delta := chunk.Delta()
		if len(delta.ToolCalls) == 0 {
			if !collecting && delta.Content != "" {
				return nil, nil
			}
			continue
		}
		collecting = true

		for _, tc := range delta.ToolCalls {
			idx := tc.Index
			for len(partials) <= idx {
				partials = append(partials, partial{})
			}
			if tc.ID != "" {
				partials[idx].id = tc.ID
			}
			if tc.Function.Name != "" {
				partials[idx].name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				partials[idx].args = append(partials[idx].args, tc.Function.Arguments...)
			}
		}
	}

	if !collecting {
		return nil, nil
	}

	calls := make([]ToolCall, 0, len(partials))
	for _, p := range partials {
		args := string(p.args)
		if args == "" || !json.Valid(json.RawMessage(args)) {
			args = "{}"
		}
		calls = append(calls, ToolCall{
			ID:       p.id,
			Type:     "function",
			Function: FunctionCall{Name: p.name, Arguments: args},
		})
	}
	return calls, nil
}

// chunksReader replays a fixed chunk slice. Used in tests and for adapting
// buffered responses where a stream surface is expected.
type chunksReader struct {
	chunks []Chunk
	pos    int
}

// NewChunksReader returns a ChunkReader over a fixed slice.
func NewChunksReader(chunks []Chunk) ChunkReader {
	return &chunksReader{chunks: chunks}
}

func (r *chunksReader) Recv() (Chunk, error) {
	if r.pos >= len(r.chunks) {
		return Chunk{}, io.EOF
	}
	c := r.chunks[r.pos]
	r.pos++
	return c, nil
}

func (r *chunksReader) Close() error {
	r.pos = len(r.chunks)
	return nil
}
