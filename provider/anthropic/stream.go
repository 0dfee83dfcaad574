package anthropic

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/langpipe/langpipe"
)

// eventReader converts the Anthropic SSE event stream into canonical chunks.
//
// Event order on the wire: message_start, then interleaved
// content_block_start / content_block_delta / content_block_stop, then
// message_delta (stop reason) and message_stop. Tool-use blocks stream their
// input as input_json_delta fragments; those pass through as tool-call
// argument deltas keyed by a call ordinal, matching the OpenAI chunk shape
// consumers already understand.
type eventReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool

	id    string
	model string

	// content block index -> tool call ordinal, for input_json_delta routing
	toolIndex map[int]int
	toolCount int
}

// NewEventReader wraps an HTTP response body carrying an Anthropic SSE
// stream. Recv returns io.EOF after message_stop.
func NewEventReader(body io.ReadCloser) langpipe.ChunkReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	return &eventReader{body: body, scanner: scanner, toolIndex: make(map[int]int)}
}

func (r *eventReader) Recv() (langpipe.Chunk, error) {
	if r.done {
		return langpipe.Chunk{}, io.EOF
	}
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		chunk, ok := r.apply(ev)
		if ok {
			return chunk, nil
		}
		if r.done {
			return langpipe.Chunk{}, io.EOF
		}
	}
	r.done = true
	if err := r.scanner.Err(); err != nil {
		return langpipe.Chunk{}, err
	}
	return langpipe.Chunk{}, io.EOF
}

// apply folds one event into reader state and reports whether it yields a
// canonical chunk.
func (r *eventReader) apply(ev StreamEvent) (langpipe.Chunk, bool) {
	switch ev.Type {
	case "message_start":
		if ev.Message != nil {
			r.id = ev.Message.ID
			r.model = ev.Message.Model
		}
		return r.chunk(langpipe.Delta{Role: langpipe.RoleAssistant}, ""), true

	case "content_block_start":
		if ev.ContentBlock == nil || ev.ContentBlock.Type != "tool_use" {
			return langpipe.Chunk{}, false
		}
		ordinal := r.toolCount
		r.toolCount++
		r.toolIndex[ev.Index] = ordinal
		return r.chunk(langpipe.Delta{ToolCalls: []langpipe.ToolCall{{
			Index: ordinal,
			ID:    ev.ContentBlock.ID,
			Type:  "function",
			Function: langpipe.FunctionCall{
				Name:      ev.ContentBlock.Name,
				Arguments: string(ev.ContentBlock.Input),
			},
		}}}, ""), true

	case "content_block_delta":
		if ev.Delta == nil {
			return langpipe.Chunk{}, false
		}
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text == "" {
				return langpipe.Chunk{}, false
			}
			return r.chunk(langpipe.Delta{Content: ev.Delta.Text}, ""), true
		case "input_json_delta":
			ordinal, known := r.toolIndex[ev.Index]
			if !known || ev.Delta.PartialJSON == "" {
				return langpipe.Chunk{}, false
			}
			return r.chunk(langpipe.Delta{ToolCalls: []langpipe.ToolCall{{
				Index:    ordinal,
				Function: langpipe.FunctionCall{Arguments: ev.Delta.PartialJSON},
			}}}, ""), true
		}
		return langpipe.Chunk{}, false

	case "message_delta":
		if ev.Delta == nil || ev.Delta.StopReason == "" {
			return langpipe.Chunk{}, false
		}
		return r.chunk(langpipe.Delta{}, FinishReason(ev.Delta.StopReason)), true

	case "message_stop":
		r.done = true
	}
	return langpipe.Chunk{}, false
}

func (r *eventReader) chunk(delta langpipe.Delta, finishReason string) langpipe.Chunk {
	return langpipe.Chunk{
		ID:      r.id,
		Object:  "chat.completion.chunk",
		Created: langpipe.NowUnix(),
		Model:   r.model,
		Choices: []langpipe.ChunkChoice{{Delta: delta, FinishReason: finishReason}},
	}
}

func (r *eventReader) Close() error {
	r.done = true
	return r.body.Close()
}
