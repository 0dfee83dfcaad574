package anthropic

import (
	"strings"

	"github.com/langpipe/langpipe"
)

// ParseResponse converts an Anthropic MessageResponse into the canonical
// buffered response: text blocks concatenate into content, tool_use blocks
// become tool calls, and the stop reason is renamed to OpenAI vocabulary.
func ParseResponse(resp MessageResponse) *langpipe.Response {
	var content strings.Builder
	var calls []langpipe.ToolCall

	for _, b := range resp.Content {
		switch b.Type {
		case "text":
			content.WriteString(b.Text)
		case "tool_use":
			args := string(b.Input)
			if args == "" {
				args = "{}"
			}
			calls = append(calls, langpipe.ToolCall{
				ID:   b.ID,
				Type: "function",
				Function: langpipe.FunctionCall{
					Name:      b.Name,
					Arguments: args,
				},
			})
		}
	}

	return &langpipe.Response{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: langpipe.NowUnix(),
		Model:   resp.Model,
		Choices: []langpipe.Choice{{
			Message: langpipe.Message{
				Role:      langpipe.RoleAssistant,
				Content:   content.String(),
				ToolCalls: calls,
			},
			FinishReason: FinishReason(resp.StopReason),
		}},
		Usage: langpipe.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

// FinishReason maps Anthropic stop reasons onto the canonical vocabulary.
func FinishReason(stopReason string) string {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	case "":
		return ""
	default:
		return stopReason
	}
}
