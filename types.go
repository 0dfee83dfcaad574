package langpipe

import "encoding/json"

// --- Canonical message types ---

// Role values for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single conversational turn in the canonical (vendor-neutral)
// format. Ordering within a thread is significant: a "tool" message must
// satisfy the ToolCallID of a preceding assistant tool call.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"` // system message label ("safety", "rag") or tool name
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-emitted request to invoke a named function.
// Function.Arguments is untrusted JSON text; parse and validate it before
// executing anything. Index is only meaningful in stream deltas, where a
// call's arguments arrive as fragments keyed by index.
type ToolCall struct {
	Index    int          `json:"index,omitempty"`
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"` // "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the function name and its arguments as JSON text.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a callable function to the model via a
// JSON-schema-shaped parameter description.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// --- Canonical request ---

// ToolChoice modes. ToolChoiceFunction forces a specific function by name.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
	ToolChoiceNone     = "none"
	ToolChoiceFunction = "function"
)

// ToolChoice is the canonical tool-choice policy. Mode is one of the
// ToolChoice* constants; FunctionName is set only for ToolChoiceFunction.
type ToolChoice struct {
	Mode         string `json:"mode"`
	FunctionName string `json:"function_name,omitempty"`
}

// Request is the canonical chat-completion request exchanged between the
// Runner and a provider Handler. Model is the vendor-local model name (the
// part after the "vendor:" prefix). Handlers translate this shape to their
// wire format; fields a vendor cannot express are dropped, never repurposed.
type Request struct {
	Model             string
	Messages          []Message
	Stream            bool
	Temperature       *float64
	TopP              *float64
	MaxTokens         int
	PresencePenalty   *float64
	FrequencyPenalty  *float64
	Stop              []string
	Tools             []ToolDefinition
	ToolChoice        *ToolChoice
	ParallelToolCalls *bool
	JSONMode          bool
	// ThreadID keys server-side conversation state for hosted endpoints.
	// Stateless vendor APIs have no wire field for it and ignore it.
	ThreadID string
}

// --- Canonical response ---

// Usage contains token usage statistics in the canonical (OpenAI-shaped) form.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is a single completion choice in a buffered response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Response is the canonical buffered chat-completion response. Each vendor
// transform projects token content, finish reason, tool calls, and usage
// into this shape whenever the vendor provides them.
type Response struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	Choices           []Choice `json:"choices"`
	Usage             Usage    `json:"usage"`
	SystemFingerprint *string  `json:"system_fingerprint"`
}

// ToolCalls returns the tool calls of the top choice, or nil.
func (r *Response) ToolCalls() []ToolCall {
	if r == nil || len(r.Choices) == 0 {
		return nil
	}
	return r.Choices[0].Message.ToolCalls
}

// Completion returns the text content of the top choice, or "".
func (r *Response) Completion() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// --- Canonical stream chunk ---

// Delta is the incremental payload of a stream chunk.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ChunkChoice is a single choice within a stream chunk.
type ChunkChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Chunk is one canonical stream chunk. Consumers read choices[0].delta.
type Chunk struct {
	ID      string        `json:"id,omitempty"`
	Object  string        `json:"object,omitempty"`
	Created int64         `json:"created,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`
}

// Delta returns choices[0].delta, or a zero Delta when the chunk carries no
// choices (some vendors emit usage-only chunks).
func (c Chunk) Delta() Delta {
	if len(c.Choices) == 0 {
		return Delta{}
	}
	return c.Choices[0].Delta
}

// --- Message constructors ---

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolResultMessage builds a "tool" message satisfying the given tool call.
func ToolResultMessage(toolCallID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, Name: name, ToolCallID: toolCallID}
}
