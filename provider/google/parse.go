package google

import (
	"strings"

	"github.com/langpipe/langpipe"
)

// ParseResponse converts a Gemini GenerateResponse into the canonical
// buffered response. Gemini emits no call IDs, so tool calls get fresh ones;
// the functionResponse round trip is keyed by name, not ID.
func ParseResponse(resp GenerateResponse) *langpipe.Response {
	out := &langpipe.Response{
		ID:      resp.ResponseID,
		Object:  "chat.completion",
		Created: langpipe.NowUnix(),
		Model:   resp.ModelVersion,
	}
	if out.ID == "" {
		out.ID = langpipe.NewID()
	}

	for i, cand := range resp.Candidates {
		var content strings.Builder
		var calls []langpipe.ToolCall
		for _, p := range cand.Content.Parts {
			if p.Thought {
				continue
			}
			if p.Text != "" {
				content.WriteString(p.Text)
			}
			if p.FunctionCall != nil {
				args := string(p.FunctionCall.Args)
				if args == "" {
					args = "{}"
				}
				calls = append(calls, langpipe.ToolCall{
					ID:   langpipe.NewID(),
					Type: "function",
					Function: langpipe.FunctionCall{
						Name:      p.FunctionCall.Name,
						Arguments: args,
					},
				})
			}
		}
		finish := FinishReason(cand.FinishReason)
		if len(calls) > 0 {
			finish = "tool_calls"
		}
		out.Choices = append(out.Choices, langpipe.Choice{
			Index: i,
			Message: langpipe.Message{
				Role:      langpipe.RoleAssistant,
				Content:   content.String(),
				ToolCalls: calls,
			},
			FinishReason: finish,
		})
	}

	if resp.UsageMetadata != nil {
		out.Usage = langpipe.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	return out
}

// FinishReason maps Gemini finish reasons onto the canonical vocabulary.
func FinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "":
		return ""
	default:
		return strings.ToLower(reason)
	}
}
