package langpipe

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNewToolMap_DuplicateName(t *testing.T) {
	tools := []Tool{echoTool("dup"), echoTool("dup")}
	if _, err := NewToolMap(tools); err == nil {
		t.Fatal("expected error for duplicate tool name")
	}
}

func TestNewToolMap_EmptyName(t *testing.T) {
	if _, err := NewToolMap([]Tool{{}}); err == nil {
		t.Fatal("expected error for empty tool name")
	}
}

func TestToolMap_Execute(t *testing.T) {
	m, err := NewToolMap([]Tool{{
		Definition: ToolDefinition{Name: "add"},
		Run: func(_ context.Context, args json.RawMessage) (any, error) {
			var in struct{ A, B int }
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			return map[string]int{"sum": in.A + in.B}, nil
		},
	}})
	if err != nil {
		t.Fatalf("NewToolMap: %v", err)
	}

	msg, err := m.execute(context.Background(), ToolCall{
		ID:       "call_1",
		Function: FunctionCall{Name: "add", Arguments: `{"A":2,"B":3}`},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if msg.Role != RoleTool || msg.ToolCallID != "call_1" || msg.Name != "add" {
		t.Errorf("unexpected tool result message: %+v", msg)
	}
	if msg.Content != `{"sum":5}` {
		t.Errorf("expected serialized result, got %q", msg.Content)
	}
}

func TestToolMap_ExecuteInvalidArguments(t *testing.T) {
	m, _ := NewToolMap([]Tool{echoTool("f")})
	_, err := m.execute(context.Background(), ToolCall{
		Function: FunctionCall{Name: "f", Arguments: `{broken`},
	})
	if err == nil {
		t.Fatal("expected error for invalid arguments JSON")
	}
}

func TestToolMap_ExecuteEmptyArgumentsDefault(t *testing.T) {
	called := false
	m, _ := NewToolMap([]Tool{{
		Definition: ToolDefinition{Name: "noargs"},
		Run: func(_ context.Context, args json.RawMessage) (any, error) {
			called = true
			if string(args) != "{}" {
				t.Errorf("expected '{}' default, got %q", args)
			}
			return "ok", nil
		},
	}})

	if _, err := m.execute(context.Background(), ToolCall{Function: FunctionCall{Name: "noargs"}}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !called {
		t.Error("tool was not invoked")
	}
}
