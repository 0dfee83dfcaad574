package langpipe

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool binds a function description (shown to the model) to a
// caller-supplied executable. The Runner holds only the name→Run mapping
// derived from registered tools; the caller owns the implementations.
type Tool struct {
	Definition ToolDefinition
	// Run executes the tool. args is the parsed JSON arguments object from
	// the model. The return value is JSON-serialized into the tool result
	// message.
	Run func(ctx context.Context, args json.RawMessage) (any, error)
}

// ToolMap is the name→tool mapping the Runner dispatches against.
type ToolMap map[string]Tool

// NewToolMap builds a ToolMap from registered tools. Duplicate names are an
// error: silently shadowing a tool would make dispatch order-dependent.
func NewToolMap(tools []Tool) (ToolMap, error) {
	m := make(ToolMap, len(tools))
	for _, t := range tools {
		name := t.Definition.Name
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, ok := m[name]; ok {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		m[name] = t
	}
	return m, nil
}

// Definitions returns the wire-facing definitions of all mapped tools, in
// the order given at registration.
func Definitions(tools []Tool) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, t.Definition)
	}
	return defs
}

// execute runs one tool call: resolves the tool by name, parses the
// untrusted argument text, invokes Run, and JSON-serializes the result.
func (m ToolMap) execute(ctx context.Context, tc ToolCall) (Message, error) {
	tool, ok := m[tc.Function.Name]
	if !ok {
		return Message{}, &ToolNotFoundError{Tool: tc.Function.Name}
	}

	args := json.RawMessage(tc.Function.Arguments)
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		return Message{}, fmt.Errorf("tool %q: invalid arguments JSON", tc.Function.Name)
	}

	result, err := tool.Run(ctx, args)
	if err != nil {
		return Message{}, fmt.Errorf("tool %q: %w", tc.Function.Name, err)
	}

	content, err := json.Marshal(result)
	if err != nil {
		return Message{}, fmt.Errorf("tool %q: serialize result: %w", tc.Function.Name, err)
	}
	return ToolResultMessage(tc.ID, tc.Function.Name, string(content)), nil
}
