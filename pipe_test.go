package langpipe

import (
	"encoding/json"
	"testing"
)

func TestParsePipe(t *testing.T) {
	src := []byte(`
name = "summarizer"
description = "Summarizes text"
model = "openai:gpt-4o-mini"
stream = true
temperature = 0.3
top_p = 0.9
max_tokens = 512
tool_choice = "auto"
parallel_tool_calls = true

[[messages]]
role = "system"
content = "You summarize documents."

[[messages]]
role = "system"
name = "safety"
content = "Do not fabricate."

[[tools]]
name = "fetch_page"
description = "Fetch a web page"
parameters = '{"type":"object","properties":{"url":{"type":"string"}}}'

[[memory]]
name = "docs"
`)

	p, err := ParsePipe(src)
	if err != nil {
		t.Fatalf("ParsePipe: %v", err)
	}
	if p.Name != "summarizer" || p.Model != "openai:gpt-4o-mini" {
		t.Errorf("unexpected header: %+v", p)
	}
	if !p.Stream || p.MaxTokens != 512 {
		t.Errorf("unexpected sampling params: %+v", p)
	}
	if p.Temperature == nil || *p.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", p.Temperature)
	}
	if p.TopP == nil || *p.TopP != 0.9 {
		t.Errorf("expected top_p 0.9, got %v", p.TopP)
	}
	if len(p.Messages) != 2 {
		t.Fatalf("expected 2 seed messages, got %d", len(p.Messages))
	}
	if p.Messages[1].Name != "safety" {
		t.Errorf("expected named system message, got %+v", p.Messages[1])
	}
	if len(p.Tools) != 1 || p.Tools[0].Name != "fetch_page" {
		t.Fatalf("expected 1 tool, got %+v", p.Tools)
	}
	var params map[string]any
	if err := json.Unmarshal(p.Tools[0].Parameters, &params); err != nil {
		t.Fatalf("tool parameters not valid JSON: %v", err)
	}
	if p.MemoryNames()[0] != "docs" {
		t.Errorf("expected memory 'docs', got %v", p.MemoryNames())
	}
}

func TestParsePipe_ModelRequired(t *testing.T) {
	if _, err := ParsePipe([]byte(`name = "x"`)); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestParsePipe_InvalidToolParameters(t *testing.T) {
	src := []byte(`
model = "openai:gpt-4o"
[[tools]]
name = "broken"
parameters = '{not json'
`)
	if _, err := ParsePipe(src); err == nil {
		t.Fatal("expected error for invalid tool parameters")
	}
}

func TestParsePipe_OmittedSamplingParamsStayUnset(t *testing.T) {
	p, err := ParsePipe([]byte(`model = "openai:gpt-4o"`))
	if err != nil {
		t.Fatalf("ParsePipe: %v", err)
	}
	if p.Temperature != nil || p.TopP != nil || p.PresencePenalty != nil || p.FrequencyPenalty != nil {
		t.Errorf("omitted sampling params should stay nil: %+v", p)
	}
}

func TestParsePipe_ExplicitZeroTemperatureKept(t *testing.T) {
	p, err := ParsePipe([]byte(`
model = "openai:gpt-4o"
temperature = 0.0
`))
	if err != nil {
		t.Fatalf("ParsePipe: %v", err)
	}
	if p.Temperature == nil || *p.Temperature != 0 {
		t.Errorf("an explicit 0 is a real setting, got %v", p.Temperature)
	}
}

func TestParsePipe_DefaultToolChoice(t *testing.T) {
	p, err := ParsePipe([]byte(`model = "openai:gpt-4o"`))
	if err != nil {
		t.Fatalf("ParsePipe: %v", err)
	}
	if p.ToolChoice.Mode != ToolChoiceAuto {
		t.Errorf("expected default tool_choice auto, got %q", p.ToolChoice.Mode)
	}
}

func TestParsePipe_ForcedFunctionToolChoice(t *testing.T) {
	p, err := ParsePipe([]byte(`
model = "openai:gpt-4o"
tool_choice = "fetch_page"
`))
	if err != nil {
		t.Fatalf("ParsePipe: %v", err)
	}
	if p.ToolChoice.Mode != ToolChoiceFunction || p.ToolChoice.FunctionName != "fetch_page" {
		t.Errorf("expected forced function choice, got %+v", p.ToolChoice)
	}
}

func TestToolChoiceValue_JSON(t *testing.T) {
	var tc ToolChoiceValue
	if err := json.Unmarshal([]byte(`"required"`), &tc); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if tc.Mode != ToolChoiceRequired {
		t.Errorf("expected required, got %q", tc.Mode)
	}

	if err := json.Unmarshal([]byte(`{"type":"function","function":{"name":"calc"}}`), &tc); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if tc.Mode != ToolChoiceFunction || tc.FunctionName != "calc" {
		t.Errorf("expected function choice, got %+v", tc)
	}

	// Round-trip: the function form marshals back to the OpenAI object.
	data, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"function":{"name":"calc"},"type":"function"}` {
		t.Errorf("unexpected marshaled form: %s", data)
	}
}

func TestSplitModel(t *testing.T) {
	tests := []struct {
		id            string
		vendor, model string
	}{
		{"openai:gpt-4o", "openai", "gpt-4o"},
		{"together:meta-llama/Llama-3-70b", "together", "meta-llama/Llama-3-70b"},
		{"nocolon", "nocolon", ""},
		{"ollama:", "ollama", ""},
	}
	for _, tt := range tests {
		vendor, model := SplitModel(tt.id)
		if vendor != tt.vendor || model != tt.model {
			t.Errorf("SplitModel(%q) = (%q, %q), want (%q, %q)", tt.id, vendor, model, tt.vendor, tt.model)
		}
	}
}
