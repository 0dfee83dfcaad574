package openaicompat

import (
	"encoding/json"

	"github.com/langpipe/langpipe"
)

// ParseResponse converts an OpenAI-format ChatResponse into the canonical
// buffered response.
func ParseResponse(resp ChatResponse) *langpipe.Response {
	out := &langpipe.Response{
		ID:                resp.ID,
		Object:            resp.Object,
		Created:           resp.Created,
		Model:             resp.Model,
		SystemFingerprint: resp.SystemFingerprint,
	}
	if out.Object == "" {
		out.Object = "chat.completion"
	}

	for _, c := range resp.Choices {
		msg := langpipe.Message{Role: langpipe.RoleAssistant}
		if c.Message != nil {
			if c.Message.Role != "" {
				msg.Role = c.Message.Role
			}
			msg.Content = c.Message.Content
			msg.ToolCalls = ParseToolCalls(c.Message.ToolCalls)
		}
		out.Choices = append(out.Choices, langpipe.Choice{
			Index:        c.Index,
			Message:      msg,
			FinishReason: c.FinishReason,
		})
	}

	if resp.Usage != nil {
		out.Usage = langpipe.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return out
}

// ParseChunk converts one decoded SSE chunk into the canonical stream chunk.
// Tool-call deltas pass through with their index intact; accumulation into
// complete calls is the consumer's job.
func ParseChunk(resp ChatResponse) langpipe.Chunk {
	out := langpipe.Chunk{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
	}
	if out.Object == "" {
		out.Object = "chat.completion.chunk"
	}
	for _, c := range resp.Choices {
		cc := langpipe.ChunkChoice{Index: c.Index, FinishReason: c.FinishReason}
		if c.Delta != nil {
			cc.Delta = langpipe.Delta{
				Role:    c.Delta.Role,
				Content: c.Delta.Content,
			}
			for _, tc := range c.Delta.ToolCalls {
				cc.Delta.ToolCalls = append(cc.Delta.ToolCalls, langpipe.ToolCall{
					Index: tc.Index,
					ID:    tc.ID,
					Type:  tc.Type,
					Function: langpipe.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
		}
		out.Choices = append(out.Choices, cc)
	}
	return out
}

// ParseToolCalls converts OpenAI tool calls to canonical ones. Arguments that
// are not valid JSON are replaced with an empty object so downstream
// executors never see garbage.
func ParseToolCalls(tcs []ToolCall) []langpipe.ToolCall {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]langpipe.ToolCall, 0, len(tcs))
	for _, tc := range tcs {
		args := tc.Function.Arguments
		if !json.Valid([]byte(args)) {
			args = "{}"
		}
		out = append(out, langpipe.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: langpipe.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: args,
			},
		})
	}
	return out
}
