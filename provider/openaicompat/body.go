package openaicompat

import (
	"encoding/json"

	"github.com/langpipe/langpipe"
)

// BuildBody converts a canonical request into an OpenAI-format ChatRequest.
// System messages stay in the messages array as role:"system". Fields the
// protocol cannot express are dropped.
func BuildBody(req langpipe.Request) ChatRequest {
	msgs := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		// The canonical Name field labels system layers ("safety", "rag")
		// and tool results; only the tool-result name goes on the wire.
		if m.Role == langpipe.RoleTool {
			msg.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		msgs = append(msgs, msg)
	}

	body := ChatRequest{
		Model:             req.Model,
		Messages:          msgs,
		Stream:            req.Stream,
		Temperature:       req.Temperature,
		TopP:              req.TopP,
		MaxTokens:         req.MaxTokens,
		FrequencyPenalty:  req.FrequencyPenalty,
		PresencePenalty:   req.PresencePenalty,
		Stop:              req.Stop,
		ParallelToolCalls: req.ParallelToolCalls,
	}

	if len(req.Tools) > 0 {
		body.Tools = BuildToolDefs(req.Tools)
	}
	if req.ToolChoice != nil {
		body.ToolChoice = buildToolChoice(*req.ToolChoice)
	}
	if req.JSONMode {
		body.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	return body
}

// BuildToolDefs converts canonical tool definitions to the OpenAI tool format.
func BuildToolDefs(tools []langpipe.ToolDefinition) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		out = append(out, Tool{
			Type: "function",
			Function: Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// buildToolChoice maps the canonical tool-choice policy onto the wire value:
// a bare mode string, or a named-function object.
func buildToolChoice(tc langpipe.ToolChoice) any {
	if tc.Mode == langpipe.ToolChoiceFunction {
		return NamedToolChoice{
			Type:     "function",
			Function: FunctionRef{Name: tc.FunctionName},
		}
	}
	return tc.Mode
}
