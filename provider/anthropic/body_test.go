package anthropic

import (
	"testing"

	"github.com/langpipe/langpipe"
)

func TestBuildBody_SystemLifted(t *testing.T) {
	req := langpipe.Request{
		Model: "claude-sonnet-4",
		Messages: []langpipe.Message{
			{Role: "system", Content: "Base prompt."},
			{Role: "system", Name: "safety", Content: "Careful."},
			{Role: "user", Content: "Hello"},
		},
	}

	body := BuildBody(req)

	if body.System != "Base prompt.\n\nCareful." {
		t.Errorf("system messages not lifted and joined: %q", body.System)
	}
	if len(body.Messages) != 1 {
		t.Fatalf("expected 1 thread message, got %d", len(body.Messages))
	}
	if body.Messages[0].Role != "user" {
		t.Errorf("expected user turn, got %q", body.Messages[0].Role)
	}
	if body.Messages[0].Content[0].Text != "Hello" {
		t.Errorf("unexpected content: %+v", body.Messages[0].Content)
	}
}

func TestBuildBody_MaxTokensDefault(t *testing.T) {
	body := BuildBody(langpipe.Request{Model: "claude-sonnet-4"})
	if body.MaxTokens != defaultMaxTokens {
		t.Errorf("expected default max_tokens %d, got %d", defaultMaxTokens, body.MaxTokens)
	}

	body = BuildBody(langpipe.Request{Model: "claude-sonnet-4", MaxTokens: 800})
	if body.MaxTokens != 800 {
		t.Errorf("expected explicit max_tokens kept, got %d", body.MaxTokens)
	}
}

func TestBuildBody_ToolUseBlocks(t *testing.T) {
	req := langpipe.Request{
		Model: "claude-sonnet-4",
		Messages: []langpipe.Message{
			{
				Role:    "assistant",
				Content: "Checking.",
				ToolCalls: []langpipe.ToolCall{
					{ID: "toolu_1", Function: langpipe.FunctionCall{Name: "search", Arguments: `{"q":"go"}`}},
				},
			},
		},
	}

	body := BuildBody(req)
	blocks := body.Messages[0].Content
	if len(blocks) != 2 {
		t.Fatalf("expected text + tool_use blocks, got %d", len(blocks))
	}
	if blocks[0].Type != "text" || blocks[0].Text != "Checking." {
		t.Errorf("unexpected text block: %+v", blocks[0])
	}
	if blocks[1].Type != "tool_use" || blocks[1].ID != "toolu_1" || blocks[1].Name != "search" {
		t.Errorf("unexpected tool_use block: %+v", blocks[1])
	}
	if string(blocks[1].Input) != `{"q":"go"}` {
		t.Errorf("arguments not carried as input: %s", blocks[1].Input)
	}
}

func TestBuildBody_ToolResultBecomesUserTurn(t *testing.T) {
	req := langpipe.Request{
		Model: "claude-sonnet-4",
		Messages: []langpipe.Message{
			{Role: "tool", Name: "search", Content: "found it", ToolCallID: "toolu_1"},
		},
	}

	body := BuildBody(req)
	msg := body.Messages[0]
	if msg.Role != "user" {
		t.Errorf("tool result must be a user turn, got %q", msg.Role)
	}
	block := msg.Content[0]
	if block.Type != "tool_result" || block.ToolUseID != "toolu_1" || block.Content != "found it" {
		t.Errorf("unexpected tool_result block: %+v", block)
	}
}

func TestBuildBody_Tools(t *testing.T) {
	req := langpipe.Request{
		Model: "claude-sonnet-4",
		Tools: []langpipe.ToolDefinition{
			{Name: "calc", Description: "Calculates"},
		},
	}

	body := BuildBody(req)
	if len(body.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(body.Tools))
	}
	if string(body.Tools[0].InputSchema) != `{"type":"object"}` {
		t.Errorf("expected default object schema, got %s", body.Tools[0].InputSchema)
	}
	if body.ToolChoice == nil || body.ToolChoice.Type != "auto" {
		t.Errorf("expected auto tool choice with tools, got %+v", body.ToolChoice)
	}
}

func TestBuildBody_ToolChoiceMapping(t *testing.T) {
	tools := []langpipe.ToolDefinition{{Name: "calc"}}

	req := langpipe.Request{Model: "m", Tools: tools, ToolChoice: &langpipe.ToolChoice{Mode: langpipe.ToolChoiceRequired}}
	if tc := BuildBody(req).ToolChoice; tc.Type != "any" {
		t.Errorf("required should map to any, got %q", tc.Type)
	}

	req.ToolChoice = &langpipe.ToolChoice{Mode: langpipe.ToolChoiceFunction, FunctionName: "calc"}
	if tc := BuildBody(req).ToolChoice; tc.Type != "tool" || tc.Name != "calc" {
		t.Errorf("function choice mismapped: %+v", tc)
	}

	parallel := false
	req.ToolChoice = nil
	req.ParallelToolCalls = &parallel
	tc := BuildBody(req).ToolChoice
	if tc.DisableParallelToolUse == nil || !*tc.DisableParallelToolUse {
		t.Errorf("parallel_tool_calls=false should disable parallel tool use: %+v", tc)
	}
}

func TestFinishReason(t *testing.T) {
	tests := []struct{ in, want string }{
		{"end_turn", "stop"},
		{"stop_sequence", "stop"},
		{"max_tokens", "length"},
		{"tool_use", "tool_calls"},
		{"", ""},
		{"refusal", "refusal"},
	}
	for _, tt := range tests {
		if got := FinishReason(tt.in); got != tt.want {
			t.Errorf("FinishReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
