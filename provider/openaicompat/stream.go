package openaicompat

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/langpipe/langpipe"
)

// sseReader reads an OpenAI SSE stream and yields canonical chunks.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	data: [DONE]\n
type sseReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

// NewSSEReader wraps an HTTP response body carrying an OpenAI-format SSE
// stream. Recv returns io.EOF after the [DONE] sentinel (or raw EOF); Close
// releases the underlying body.
func NewSSEReader(body io.ReadCloser) langpipe.ChunkReader {
	scanner := bufio.NewScanner(body)
	// Large tool-call argument fragments can exceed the default line limit.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	return &sseReader{body: body, scanner: scanner}
}

func (r *sseReader) Recv() (langpipe.Chunk, error) {
	if r.done {
		return langpipe.Chunk{}, io.EOF
	}
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			r.done = true
			return langpipe.Chunk{}, io.EOF
		}
		var chunk ChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks.
			continue
		}
		return ParseChunk(chunk), nil
	}
	r.done = true
	if err := r.scanner.Err(); err != nil {
		return langpipe.Chunk{}, err
	}
	return langpipe.Chunk{}, io.EOF
}

func (r *sseReader) Close() error {
	r.done = true
	return r.body.Close()
}
