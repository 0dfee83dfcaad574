package google

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/langpipe/langpipe"
)

// sseReader converts the streamGenerateContent SSE stream (alt=sse) into
// canonical chunks. Each data payload is a complete GenerateResponse whose
// parts are this chunk's deltas; functionCall parts arrive whole, so their
// arguments are emitted in a single tool-call delta.
type sseReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool

	started   bool
	toolCount int
}

// NewSSEReader wraps an HTTP response body carrying a Gemini SSE stream.
func NewSSEReader(body io.ReadCloser) langpipe.ChunkReader {
	scanner := bufio.NewScanner(body)
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
		var resp GenerateResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &resp); err != nil {
			continue
		}
		chunk, ok := r.toChunk(resp)
		if ok {
			return chunk, nil
		}
	}
	r.done = true
	if err := r.scanner.Err(); err != nil {
		return langpipe.Chunk{}, err
	}
	return langpipe.Chunk{}, io.EOF
}

func (r *sseReader) toChunk(resp GenerateResponse) (langpipe.Chunk, bool) {
	if len(resp.Candidates) == 0 {
		return langpipe.Chunk{}, false
	}
	cand := resp.Candidates[0]

	delta := langpipe.Delta{}
	if !r.started {
		delta.Role = langpipe.RoleAssistant
		r.started = true
	}
	for _, p := range cand.Content.Parts {
		if p.Thought {
			continue
		}
		delta.Content += p.Text
		if p.FunctionCall != nil {
			args := string(p.FunctionCall.Args)
			if args == "" {
				args = "{}"
			}
			delta.ToolCalls = append(delta.ToolCalls, langpipe.ToolCall{
				Index: r.toolCount,
				ID:    langpipe.NewID(),
				Type:  "function",
				Function: langpipe.FunctionCall{
					Name:      p.FunctionCall.Name,
					Arguments: args,
				},
			})
			r.toolCount++
		}
	}

	finish := FinishReason(cand.FinishReason)
	if len(delta.ToolCalls) > 0 && finish != "" {
		finish = "tool_calls"
	}

	return langpipe.Chunk{
		ID:      resp.ResponseID,
		Object:  "chat.completion.chunk",
		Created: langpipe.NowUnix(),
		Model:   resp.ModelVersion,
		Choices: []langpipe.ChunkChoice{{Delta: delta, FinishReason: finish}},
	}, true
}

func (r *sseReader) Close() error {
	r.done = true
	return r.body.Close()
}
