package langpipe

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// MemoryRef names an attached memory. Only the name travels with the pipe;
// the chunk store resolves it to an embedded document set at retrieval time.
type MemoryRef struct {
	Name string `toml:"name" json:"name"`
}

// Variable is a named value substituted into seed message templates.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Pipe is an immutable conversation policy: model, sampling parameters,
// registered tools, memory references, and a seed message list that may
// contain specially-named system messages ("safety", "rag") alongside an
// ordinary system/user/assistant history. Created from a declarative TOML
// source; read-only at run time.
type Pipe struct {
	Name              string           `toml:"name" json:"name"`
	Description       string           `toml:"description" json:"description"`
	Model             string           `toml:"model" json:"model"` // "vendor:model"
	Stream            bool             `toml:"stream" json:"stream"`
	JSON              bool             `toml:"json" json:"json"`
	// Sampling parameters stay nil when the source omits them, so the
	// vendor default applies; an explicit 0 is sent as 0.
	Temperature       *float64         `toml:"temperature" json:"temperature,omitempty"`
	TopP              *float64         `toml:"top_p" json:"top_p,omitempty"`
	MaxTokens         int              `toml:"max_tokens" json:"max_tokens"`
	PresencePenalty   *float64         `toml:"presence_penalty" json:"presence_penalty,omitempty"`
	FrequencyPenalty  *float64         `toml:"frequency_penalty" json:"frequency_penalty,omitempty"`
	Stop              []string         `toml:"stop" json:"stop"`
	ToolChoice        ToolChoiceValue  `toml:"tool_choice" json:"tool_choice"`
	ParallelToolCalls bool             `toml:"parallel_tool_calls" json:"parallel_tool_calls"`
	Messages          []Message        `toml:"-" json:"messages"`
	Tools             []ToolDefinition `toml:"-" json:"tools"`
	Memory            []MemoryRef      `toml:"memory" json:"memory"`
}

// ToolChoiceValue wraps ToolChoice with the wire encodings used by the pipe
// source and the run request: the string forms "auto"/"required"/"none", or
// an explicit function reference.
type ToolChoiceValue struct {
	ToolChoice
}

// UnmarshalText accepts "auto", "required", "none", or a bare function name.
func (t *ToolChoiceValue) UnmarshalText(text []byte) error {
	s := string(text)
	switch s {
	case "", ToolChoiceAuto:
		t.Mode = ToolChoiceAuto
	case ToolChoiceRequired, ToolChoiceNone:
		t.Mode = s
	default:
		t.Mode = ToolChoiceFunction
		t.FunctionName = s
	}
	return nil
}

// UnmarshalJSON accepts the string forms or the OpenAI-shaped object
// {"type":"function","function":{"name":...}}.
func (t *ToolChoiceValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return t.UnmarshalText([]byte(s))
	}
	var obj struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid tool_choice: %w", err)
	}
	if obj.Function.Name == "" {
		return fmt.Errorf("invalid tool_choice: missing function name")
	}
	t.Mode = ToolChoiceFunction
	t.FunctionName = obj.Function.Name
	return nil
}

// MarshalJSON emits the string form for the plain modes and the OpenAI
// object form for an explicit function reference.
func (t ToolChoiceValue) MarshalJSON() ([]byte, error) {
	if t.Mode != ToolChoiceFunction {
		mode := t.Mode
		if mode == "" {
			mode = ToolChoiceAuto
		}
		return json.Marshal(mode)
	}
	return json.Marshal(map[string]any{
		"type":     "function",
		"function": map[string]string{"name": t.FunctionName},
	})
}

// pipeFile is the on-disk TOML shape. Tool parameters are JSON text in the
// TOML source and parsed into raw JSON here.
type pipeFile struct {
	Pipe
	Messages []pipeMessage `toml:"messages"`
	Tools    []pipeTool    `toml:"tools"`
}

type pipeMessage struct {
	Role    string `toml:"role"`
	Content string `toml:"content"`
	Name    string `toml:"name"`
}

type pipeTool struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Parameters  string `toml:"parameters"`
}

// LoadPipe reads a declarative pipe definition from a TOML file.
func LoadPipe(path string) (*Pipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipe %s: %w", path, err)
	}
	return ParsePipe(data)
}

// ParsePipe parses a declarative pipe definition from TOML bytes.
func ParsePipe(data []byte) (*Pipe, error) {
	var pf pipeFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse pipe: %w", err)
	}
	p := pf.Pipe
	if p.Model == "" {
		return nil, fmt.Errorf("parse pipe: model is required")
	}
	if p.ToolChoice.Mode == "" {
		p.ToolChoice.Mode = ToolChoiceAuto
	}
	for _, m := range pf.Messages {
		p.Messages = append(p.Messages, Message{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	for _, t := range pf.Tools {
		params := json.RawMessage(t.Parameters)
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		if !json.Valid(params) {
			return nil, fmt.Errorf("parse pipe: tool %q has invalid parameters JSON", t.Name)
		}
		p.Tools = append(p.Tools, ToolDefinition{Name: t.Name, Description: t.Description, Parameters: params})
	}
	return &p, nil
}

// MemoryNames returns the names of all attached memories.
func (p *Pipe) MemoryNames() []string {
	names := make([]string, 0, len(p.Memory))
	for _, m := range p.Memory {
		names = append(names, m.Name)
	}
	return names
}

// Vendor returns the vendor token of the model identifier (the substring
// before the first ":"), and the vendor-local model name after it.
func (p *Pipe) Vendor() (vendor, model string) {
	return SplitModel(p.Model)
}

// SplitModel splits a "vendor:model" identifier on the first colon.
func SplitModel(id string) (vendor, model string) {
	vendor, model, found := strings.Cut(id, ":")
	if !found {
		return id, ""
	}
	return vendor, model
}

// ApplyVariables substitutes {{name}} placeholders in every message content
// and returns a new slice; the input is not modified.
func ApplyVariables(messages []Message, vars []Variable) []Message {
	if len(vars) == 0 || len(messages) == 0 {
		return messages
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	for i := range out {
		for _, v := range vars {
			out[i].Content = strings.ReplaceAll(out[i].Content, "{{"+v.Name+"}}", v.Value)
		}
	}
	return out
}
