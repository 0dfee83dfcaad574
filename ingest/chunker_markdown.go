package ingest

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var _ Chunker = (*MarkdownChunker)(nil)

// MarkdownChunker splits markdown at heading boundaries so each chunk stays
// a coherent section. Oversized sections fall back to the recursive
// chunker; undersized neighbors merge up to the size limit.
type MarkdownChunker struct {
	maxChars int
	fallback *RecursiveChunker
	parser   goldmark.Markdown
}

// NewMarkdownChunker creates a MarkdownChunker with the given options.
func NewMarkdownChunker(opts ...ChunkerOption) *MarkdownChunker {
	cfg := defaultChunkerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &MarkdownChunker{
		maxChars: cfg.maxChars,
		fallback: NewRecursiveChunker(opts...),
		parser:   goldmark.New(),
	}
}

// Chunk splits markdown text into chunks respecting heading boundaries.
func (mc *MarkdownChunker) Chunk(md string) []string {
	md = strings.TrimSpace(md)
	if md == "" {
		return nil
	}
	if len(md) <= mc.maxChars {
		return []string{md}
	}
	return mc.mergeSections(mc.splitSections(md))
}

// splitSections parses the markdown and cuts the source at every top-level
// heading, keeping the heading line with its section.
func (mc *MarkdownChunker) splitSections(md string) []string {
	src := []byte(md)
	doc := mc.parser.Parser().Parse(text.NewReader(src))

	var starts []int
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		h, ok := node.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		// Lines start after the "#" markers; walk back to the line start.
		start := h.Lines().At(0).Start
		for start > 0 && src[start-1] != '\n' {
			start--
		}
		starts = append(starts, start)
	}
	if len(starts) == 0 {
		return []string{md}
	}

	var sections []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}
	add(md[:starts[0]])
	for i, start := range starts {
		end := len(md)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		add(md[start:end])
	}
	return sections
}

// mergeSections merges small sections together and splits large ones.
func (mc *MarkdownChunker) mergeSections(sections []string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, section := range sections {
		if len(section) > mc.maxChars {
			flush()
			chunks = append(chunks, mc.fallback.Chunk(section)...)
			continue
		}
		if current.Len() > 0 && current.Len()+2+len(section) > mc.maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(section)
	}
	flush()
	return chunks
}
