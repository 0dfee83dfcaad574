package openaicompat

import (
	"encoding/json"
	"testing"

	"github.com/langpipe/langpipe"
)

func TestBuildBody_Messages(t *testing.T) {
	temp := 0.7
	req := langpipe.Request{
		Model:       "gpt-4o",
		Temperature: &temp,
		Messages: []langpipe.Message{
			{Role: "system", Content: "Be helpful."},
			{Role: "user", Content: "Hello"},
			{Role: "assistant", Content: "Hi!"},
		},
	}

	body := BuildBody(req)

	if body.Model != "gpt-4o" {
		t.Errorf("expected model 'gpt-4o', got %q", body.Model)
	}
	if body.Temperature == nil || *body.Temperature != 0.7 {
		t.Errorf("temperature not forwarded: %v", body.Temperature)
	}
	if len(body.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(body.Messages))
	}
	if body.Messages[0].Role != "system" || body.Messages[0].Content != "Be helpful." {
		t.Errorf("unexpected system message: %+v", body.Messages[0])
	}
}

func TestBuildBody_SystemLayerNameDropped(t *testing.T) {
	// The canonical Name on system messages labels prompt layers and must
	// never reach the wire.
	req := langpipe.Request{
		Model: "gpt-4o",
		Messages: []langpipe.Message{
			{Role: "system", Name: "safety", Content: "Careful."},
		},
	}
	body := BuildBody(req)
	if body.Messages[0].Name != "" {
		t.Errorf("system layer name leaked to the wire: %q", body.Messages[0].Name)
	}
}

func TestBuildBody_ToolResultKeepsName(t *testing.T) {
	req := langpipe.Request{
		Model: "gpt-4o",
		Messages: []langpipe.Message{
			{Role: "tool", Name: "search", Content: "results", ToolCallID: "call_1"},
		},
	}
	body := BuildBody(req)
	msg := body.Messages[0]
	if msg.Name != "search" || msg.ToolCallID != "call_1" {
		t.Errorf("tool result fields not forwarded: %+v", msg)
	}
}

func TestBuildBody_AssistantToolCalls(t *testing.T) {
	req := langpipe.Request{
		Model: "gpt-4o",
		Messages: []langpipe.Message{
			{
				Role: "assistant",
				ToolCalls: []langpipe.ToolCall{
					{ID: "call_1", Function: langpipe.FunctionCall{Name: "search", Arguments: `{"q":"go"}`}},
				},
			},
		},
	}
	body := BuildBody(req)
	tcs := body.Messages[0].ToolCalls
	if len(tcs) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(tcs))
	}
	if tcs[0].Type != "function" || tcs[0].ID != "call_1" {
		t.Errorf("unexpected tool call: %+v", tcs[0])
	}
	if tcs[0].Function.Arguments != `{"q":"go"}` {
		t.Errorf("arguments not preserved: %q", tcs[0].Function.Arguments)
	}
}

func TestBuildBody_ToolChoice(t *testing.T) {
	req := langpipe.Request{
		Model:      "gpt-4o",
		ToolChoice: &langpipe.ToolChoice{Mode: langpipe.ToolChoiceRequired},
	}
	body := BuildBody(req)
	if body.ToolChoice != "required" {
		t.Errorf("expected bare mode string, got %v", body.ToolChoice)
	}

	req.ToolChoice = &langpipe.ToolChoice{Mode: langpipe.ToolChoiceFunction, FunctionName: "calc"}
	body = BuildBody(req)
	named, ok := body.ToolChoice.(NamedToolChoice)
	if !ok {
		t.Fatalf("expected NamedToolChoice, got %T", body.ToolChoice)
	}
	if named.Type != "function" || named.Function.Name != "calc" {
		t.Errorf("unexpected named choice: %+v", named)
	}
}

func TestBuildBody_JSONMode(t *testing.T) {
	body := BuildBody(langpipe.Request{Model: "gpt-4o", JSONMode: true})
	if body.ResponseFormat == nil || body.ResponseFormat.Type != "json_object" {
		t.Errorf("expected json_object response format, got %+v", body.ResponseFormat)
	}
}

func TestBuildToolDefs_EmptyParametersDefault(t *testing.T) {
	defs := BuildToolDefs([]langpipe.ToolDefinition{
		{Name: "a", Parameters: json.RawMessage(`{"type":"object"}`)},
		{Name: "b"},
	})
	if len(defs) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(defs))
	}
	if string(defs[1].Function.Parameters) != "{}" {
		t.Errorf("expected '{}' default, got %s", defs[1].Function.Parameters)
	}
}
