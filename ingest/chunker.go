package ingest

import "strings"

// Chunker splits text into chunks suitable for embedding.
type Chunker interface {
	Chunk(text string) []string
}

// Defaults for chunk sizing, in characters.
const (
	DefaultChunkMaxLength = 1024
	DefaultChunkOverlap   = 256
)

// ChunkerOption configures a chunker implementation.
type ChunkerOption func(*chunkerConfig)

type chunkerConfig struct {
	maxChars     int
	overlapChars int
}

func defaultChunkerConfig() chunkerConfig {
	return chunkerConfig{maxChars: DefaultChunkMaxLength, overlapChars: DefaultChunkOverlap}
}

// WithMaxChunkLength sets the maximum characters per chunk.
func WithMaxChunkLength(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.maxChars = n }
}

// WithChunkOverlap sets the overlap between consecutive chunks in characters.
func WithChunkOverlap(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.overlapChars = n }
}

// RecursiveChunker splits text by paragraphs, then sentences, then words,
// merging segments back up to the size limit with overlap between chunks.
type RecursiveChunker struct {
	maxChars     int
	overlapChars int
}

var _ Chunker = (*RecursiveChunker)(nil)

// NewRecursiveChunker creates a RecursiveChunker with the given options.
func NewRecursiveChunker(opts ...ChunkerOption) *RecursiveChunker {
	cfg := defaultChunkerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &RecursiveChunker{maxChars: cfg.maxChars, overlapChars: cfg.overlapChars}
}

// Chunk splits text into overlapping chunks.
func (rc *RecursiveChunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= rc.maxChars {
		return []string{text}
	}
	segments := splitRecursive(text, rc.maxChars)
	return mergeWithOverlap(segments, rc.maxChars, rc.overlapChars)
}

// splitRecursive breaks text into segments no larger than maxChars, trying
// paragraph boundaries first, then sentences, then words.
func splitRecursive(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxChars {
		return []string{text}
	}

	if paragraphs := strings.Split(text, "\n\n"); len(paragraphs) > 1 {
		var segments []string
		for _, p := range paragraphs {
			segments = append(segments, splitRecursive(p, maxChars)...)
		}
		return segments
	}

	if sentences := splitSentences(text); len(sentences) > 1 {
		var segments []string
		for _, s := range sentences {
			if len(s) <= maxChars {
				segments = append(segments, s)
			} else {
				segments = append(segments, splitWords(s, maxChars)...)
			}
		}
		return segments
	}

	return splitWords(text, maxChars)
}

// splitSentences splits on sentence-ending punctuation followed by a space.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' || text[i+1] == '\n' {
				s := strings.TrimSpace(text[start : i+1])
				if s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// splitWords splits on whitespace, packing words up to maxChars per segment.
func splitWords(text string, maxChars int) []string {
	words := strings.Fields(text)
	var segments []string
	var current strings.Builder
	for _, w := range words {
		if current.Len() > 0 && current.Len()+1+len(w) > maxChars {
			segments = append(segments, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}

// mergeWithOverlap packs segments into chunks up to maxChars, carrying the
// tail of each chunk into the next as overlap.
func mergeWithOverlap(segments []string, maxChars, overlapChars int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()
		if overlapChars > 0 && len(chunk) > overlapChars {
			tail := chunk[len(chunk)-overlapChars:]
			// Start the overlap at a word boundary.
			if i := strings.IndexByte(tail, ' '); i >= 0 && i+1 < len(tail) {
				tail = tail[i+1:]
			}
			current.WriteString(tail)
		}
	}

	for _, seg := range segments {
		if current.Len() > 0 && current.Len()+2+len(seg) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(seg)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
