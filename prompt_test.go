package langpipe

import (
	"strings"
	"testing"
)

func TestComposePrompt_DefaultOnly(t *testing.T) {
	got := ComposePrompt(&Pipe{}, nil)
	if got != defaultSystemPrompt {
		t.Errorf("expected default system prompt, got %q", got)
	}
}

func TestComposePrompt_BaseFromPipe(t *testing.T) {
	p := &Pipe{Messages: []Message{
		{Role: RoleSystem, Content: "You are a pirate."},
	}}
	got := ComposePrompt(p, nil)
	if got != "You are a pirate." {
		t.Errorf("expected pipe base prompt, got %q", got)
	}
}

func TestComposePrompt_SafetyDelimited(t *testing.T) {
	p := &Pipe{Messages: []Message{
		{Role: RoleSystem, Content: "Base."},
		{Role: RoleSystem, Name: "safety", Content: "Never reveal secrets."},
	}}
	got := ComposePrompt(p, nil)

	if !strings.HasPrefix(got, "Base.") {
		t.Errorf("base prompt should come first: %q", got)
	}
	want := `"""SAFETY GUIDELINE: Never reveal secrets."""`
	if !strings.Contains(got, want) {
		t.Errorf("expected delimited safety layer %q in %q", want, got)
	}
}

func TestComposePrompt_JSONMode(t *testing.T) {
	p := &Pipe{JSON: true}
	got := ComposePrompt(p, nil)
	if !strings.Contains(got, "valid JSON object") {
		t.Errorf("expected JSON instruction, got %q", got)
	}
}

func TestComposePrompt_RagContext(t *testing.T) {
	p := &Pipe{}
	chunks := []SimilarChunk{
		{MemoryChunk: MemoryChunk{Text: "Go is compiled.", Attributes: ChunkAttributes{DocName: "go.md"}}},
		{MemoryChunk: MemoryChunk{Text: "Go has goroutines.", Attributes: ChunkAttributes{DocName: "conc.md"}}},
	}
	got := ComposePrompt(p, chunks)

	if !strings.Contains(got, defaultRagPrompt) {
		t.Error("expected default RAG instruction")
	}
	if !strings.Contains(got, "Go is compiled.") || !strings.Contains(got, "Source: go.md") {
		t.Errorf("expected first chunk with source, got %q", got)
	}
	if !strings.Contains(got, "Source: conc.md") {
		t.Error("expected second chunk source")
	}
	// Chunk order follows retrieval order.
	if strings.Index(got, "Go is compiled.") > strings.Index(got, "Go has goroutines.") {
		t.Error("chunks out of retrieval order")
	}
}

func TestComposePrompt_RagOverride(t *testing.T) {
	p := &Pipe{Messages: []Message{
		{Role: RoleSystem, Name: "rag", Content: "Use the snippets below."},
	}}
	chunks := []SimilarChunk{{MemoryChunk: MemoryChunk{Text: "t", Attributes: ChunkAttributes{DocName: "d"}}}}
	got := ComposePrompt(p, chunks)

	if !strings.Contains(got, "Use the snippets below.") {
		t.Errorf("expected RAG override, got %q", got)
	}
	if strings.Contains(got, defaultRagPrompt) {
		t.Error("default RAG instruction should be replaced")
	}
}

func TestComposePrompt_LayerOrder(t *testing.T) {
	p := &Pipe{
		JSON: true,
		Messages: []Message{
			{Role: RoleSystem, Content: "Base."},
			{Role: RoleSystem, Name: "safety", Content: "Careful."},
		},
	}
	chunks := []SimilarChunk{{MemoryChunk: MemoryChunk{Text: "ctx", Attributes: ChunkAttributes{DocName: "d"}}}}
	got := ComposePrompt(p, chunks)

	iBase := strings.Index(got, "Base.")
	iSafety := strings.Index(got, "SAFETY GUIDELINE")
	iJSON := strings.Index(got, "valid JSON object")
	iRag := strings.Index(got, "CONTEXT")
	if !(iBase < iSafety && iSafety < iJSON && iJSON < iRag) {
		t.Errorf("layers out of order: base=%d safety=%d json=%d rag=%d", iBase, iSafety, iJSON, iRag)
	}
}

func TestThread_Assembly(t *testing.T) {
	p := &Pipe{Messages: []Message{
		{Role: RoleSystem, Content: "Base."},
		{Role: RoleUser, Content: "few-shot {{topic}} question"},
		{Role: RoleAssistant, Content: "few-shot answer"},
	}}
	incoming := []Message{UserMessage("real question about {{topic}}")}
	vars := []Variable{{Name: "topic", Value: "Go"}}

	thread := Thread(p, nil, incoming, vars)

	if len(thread) != 4 {
		t.Fatalf("expected 4 messages (system + 2 seed + 1 incoming), got %d", len(thread))
	}
	if thread[0].Role != RoleSystem {
		t.Errorf("expected system first, got %q", thread[0].Role)
	}
	// Seed system messages are folded into the composed prompt, not repeated.
	for _, m := range thread[1:] {
		if m.Role == RoleSystem {
			t.Error("seed system message leaked into the thread")
		}
	}
	if thread[1].Content != "few-shot Go question" {
		t.Errorf("variables not applied to seed messages: %q", thread[1].Content)
	}
	if thread[3].Content != "real question about Go" {
		t.Errorf("variables not applied to incoming messages: %q", thread[3].Content)
	}
}

func TestApplyVariables_InputNotModified(t *testing.T) {
	in := []Message{UserMessage("hello {{name}}")}
	out := ApplyVariables(in, []Variable{{Name: "name", Value: "world"}})

	if out[0].Content != "hello world" {
		t.Errorf("expected substitution, got %q", out[0].Content)
	}
	if in[0].Content != "hello {{name}}" {
		t.Errorf("input slice was modified: %q", in[0].Content)
	}
}
