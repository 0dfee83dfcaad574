package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/langpipe/langpipe"
)

// BuildBody converts a canonical request into an Anthropic MessageRequest.
// System messages are lifted out of the thread into the system field; tool
// results become tool_result blocks inside user turns. JSON mode has no
// Messages API equivalent and is expressed upstream through the prompt.
func BuildBody(req langpipe.Request) MessageRequest {
	var system []string
	var msgs []MessageParam

	for _, m := range req.Messages {
		switch m.Role {
		case langpipe.RoleSystem:
			if m.Content != "" {
				system = append(system, m.Content)
			}

		case langpipe.RoleAssistant:
			var blocks []ContentBlock
			if m.Content != "" {
				blocks = append(blocks, ContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, ContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: input,
				})
			}
			msgs = append(msgs, MessageParam{Role: "assistant", Content: blocks})

		case langpipe.RoleTool:
			msgs = append(msgs, MessageParam{
				Role: "user",
				Content: []ContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})

		default:
			msgs = append(msgs, MessageParam{
				Role:    "user",
				Content: []ContentBlock{{Type: "text", Text: m.Content}},
			})
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := MessageRequest{
		Model:         req.Model,
		Messages:      msgs,
		System:        strings.Join(system, "\n\n"),
		MaxTokens:     maxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        req.Stream,
	}

	for _, t := range req.Tools {
		schema := t.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		body.Tools = append(body.Tools, ToolDef{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	if tc := buildToolChoice(req); tc != nil && len(body.Tools) > 0 {
		body.ToolChoice = tc
	}

	return body
}

// buildToolChoice maps the canonical policy to Anthropic's union, folding
// parallel_tool_calls=false into disable_parallel_tool_use.
func buildToolChoice(req langpipe.Request) *ToolChoice {
	var out ToolChoice
	switch {
	case req.ToolChoice == nil:
		out.Type = "auto"
	case req.ToolChoice.Mode == langpipe.ToolChoiceRequired:
		out.Type = "any"
	case req.ToolChoice.Mode == langpipe.ToolChoiceNone:
		out.Type = "none"
	case req.ToolChoice.Mode == langpipe.ToolChoiceFunction:
		out.Type = "tool"
		out.Name = req.ToolChoice.FunctionName
	default:
		out.Type = "auto"
	}
	if req.ParallelToolCalls != nil && !*req.ParallelToolCalls && out.Type != "none" {
		disable := true
		out.DisableParallelToolUse = &disable
	}
	return &out
}
