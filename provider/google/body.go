package google

import (
	"encoding/json"
	"strings"

	"github.com/langpipe/langpipe"
)

// BuildBody converts a canonical request into a Gemini GenerateRequest.
// System messages become the systemInstruction; assistant tool calls become
// model-role functionCall parts; tool results become user-role
// functionResponse parts keyed by function name (Gemini has no call IDs).
func BuildBody(req langpipe.Request) GenerateRequest {
	var system []string
	var contents []Content

	for _, m := range req.Messages {
		switch {
		case m.Role == langpipe.RoleSystem:
			if m.Content != "" {
				system = append(system, m.Content)
			}

		case m.Role == langpipe.RoleAssistant && len(m.ToolCalls) > 0:
			var parts []Part
			if m.Content != "" {
				parts = append(parts, Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := json.RawMessage(tc.Function.Arguments)
				if !json.Valid(args) {
					args = json.RawMessage(`{}`)
				}
				parts = append(parts, Part{FunctionCall: &FunctionCall{
					Name: tc.Function.Name,
					Args: args,
				}})
			}
			contents = append(contents, Content{Role: "model", Parts: parts})

		case m.Role == langpipe.RoleTool:
			name := m.Name
			if name == "" {
				name = m.ToolCallID
			}
			contents = append(contents, Content{
				Role: "user",
				Parts: []Part{{FunctionResponse: &FunctionResponse{
					Name:     name,
					Response: map[string]any{"result": m.Content},
				}}},
			})

		default:
			contents = append(contents, Content{
				Role:  mapRole(m.Role),
				Parts: []Part{{Text: m.Content}},
			})
		}
	}

	body := GenerateRequest{Contents: contents}

	if len(system) > 0 {
		body.SystemInstruction = &Content{
			Parts: []Part{{Text: strings.Join(system, "\n\n")}},
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		body.Tools = []ToolEntry{{FunctionDeclarations: decls}}
		body.ToolConfig = buildToolConfig(req.ToolChoice)
	}

	gc := &GenerationConfig{
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		MaxOutputTokens:  req.MaxTokens,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		StopSequences:    req.Stop,
	}
	if req.JSONMode {
		gc.ResponseMimeType = "application/json"
	}
	body.GenerationConfig = gc

	return body
}

// buildToolConfig maps the canonical tool-choice policy onto Gemini's
// function calling modes. A forced function becomes ANY narrowed to that
// one name.
func buildToolConfig(tc *langpipe.ToolChoice) *ToolConfig {
	if tc == nil {
		return nil
	}
	cfg := FunctionCallingConfig{Mode: "AUTO"}
	switch tc.Mode {
	case langpipe.ToolChoiceRequired:
		cfg.Mode = "ANY"
	case langpipe.ToolChoiceNone:
		cfg.Mode = "NONE"
	case langpipe.ToolChoiceFunction:
		cfg.Mode = "ANY"
		cfg.AllowedFunctionNames = []string{tc.FunctionName}
	}
	return &ToolConfig{FunctionCallingConfig: cfg}
}

// mapRole converts canonical roles to Gemini API roles.
func mapRole(role string) string {
	if role == langpipe.RoleAssistant {
		return "model"
	}
	return "user"
}
