package langpipe

import "strings"

// defaultSystemPrompt is used when the pipe defines no base instruction.
const defaultSystemPrompt = "You are a helpful AI Chat assistant"

// defaultRagPrompt instructs the model to answer only from retrieved
// context. A pipe overrides it with a system message named "rag".
const defaultRagPrompt = "Below is some CONTEXT for you to answer the questions. " +
	"ONLY answer from the CONTEXT. CONTEXT consists of multiple information chunks. " +
	"Each chunk has a source mentioned at the end. " +
	"If you don't know the answer, just say that you don't know. " +
	"Ask for more context and better questions if needed."

// jsonModePrompt is appended when the pipe's structured-output flag is set.
const jsonModePrompt = "You must respond with a valid JSON object and nothing else. " +
	"Do not wrap the JSON in markdown code fences."

// ComposePrompt builds the single system message content from four optional
// layers, in fixed order: the base instruction (or the built-in default),
// a delimited safety instruction, the structured-output instruction when
// the pipe's json flag is set, and a retrieved-context block when the
// retrieval engine returned at least one chunk. Layers are joined with a
// blank line and the whole result is trimmed.
func ComposePrompt(pipe *Pipe, chunks []SimilarChunk) string {
	layers := []string{basePrompt(pipe)}

	if safety := namedSystemMessage(pipe, "safety"); safety != "" {
		layers = append(layers, `"""SAFETY GUIDELINE: `+safety+`"""`)
	}

	if pipe.JSON {
		layers = append(layers, jsonModePrompt)
	}

	if len(chunks) > 0 {
		layers = append(layers, ragContext(pipe, chunks))
	}

	return strings.TrimSpace(strings.Join(layers, "\n\n"))
}

// Thread assembles the full message list for one turn: the composed system
// message, the pipe's few-shot seed messages (non-system, variables
// applied), then the caller's messages for this run.
func Thread(pipe *Pipe, chunks []SimilarChunk, messages []Message, vars []Variable) []Message {
	thread := []Message{SystemMessage(ComposePrompt(pipe, chunks))}

	for _, m := range ApplyVariables(pipe.Messages, vars) {
		if m.Role != RoleSystem {
			thread = append(thread, m)
		}
	}

	return append(thread, ApplyVariables(messages, vars)...)
}

func basePrompt(pipe *Pipe) string {
	for _, m := range pipe.Messages {
		if m.Role == RoleSystem && m.Name == "" && m.Content != "" {
			return m.Content
		}
	}
	return defaultSystemPrompt
}

func namedSystemMessage(pipe *Pipe, name string) string {
	for _, m := range pipe.Messages {
		if m.Role == RoleSystem && m.Name == name {
			return m.Content
		}
	}
	return ""
}

// ragContext renders the RAG instruction (pipe override or default)
// followed by a delimited CONTEXT section: one block per chunk, each with
// its text and source document name, in retrieval order (descending
// similarity).
func ragContext(pipe *Pipe, chunks []SimilarChunk) string {
	ragPrompt := namedSystemMessage(pipe, "rag")
	if ragPrompt == "" {
		ragPrompt = defaultRagPrompt
	}

	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.Text)
		b.WriteString(" \n\n Source: ")
		b.WriteString(c.Attributes.DocName)
	}

	return `"""` + ragPrompt + `"""` + "\n\n" + `"""CONTEXT:` + "\n " + b.String() + `"""`
}
