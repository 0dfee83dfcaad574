package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/langpipe/langpipe"
)

// ChunkWriter stores embedded chunks for a document. Both store/sqlite and
// store/postgres implement it.
type ChunkWriter interface {
	Put(ctx context.Context, memory, docName string, chunks []langpipe.MemoryChunk) error
}

// Result holds the outcome of an ingest operation.
type Result struct {
	Memory     string
	DocName    string
	ChunkCount int
}

// Ingestor provides end-to-end ingestion: extract -> chunk -> embed -> store.
type Ingestor struct {
	store      ChunkWriter
	embedder   langpipe.Embedder
	chunker    Chunker
	mdChunker  Chunker
	extractors map[ContentType]Extractor
	batchSize  int
	logger     *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithChunker overrides the default chunker for non-markdown content.
func WithChunker(c Chunker) Option {
	return func(ing *Ingestor) { ing.chunker = c }
}

// WithMarkdownChunker overrides the heading-aware chunker for markdown.
func WithMarkdownChunker(c Chunker) Option {
	return func(ing *Ingestor) { ing.mdChunker = c }
}

// WithExtractor registers or replaces the extractor for a content type.
func WithExtractor(ct ContentType, e Extractor) Option {
	return func(ing *Ingestor) { ing.extractors[ct] = e }
}

// WithBatchSize sets how many chunks are embedded per API call.
func WithBatchSize(n int) Option {
	return func(ing *Ingestor) { ing.batchSize = n }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// NewIngestor creates an Ingestor with the built-in extractors and chunkers.
func NewIngestor(store ChunkWriter, embedder langpipe.Embedder, opts ...Option) *Ingestor {
	ing := &Ingestor{
		store:     store,
		embedder:  embedder,
		chunker:   NewRecursiveChunker(),
		mdChunker: NewMarkdownChunker(),
		extractors: map[ContentType]Extractor{
			TypePlainText: PlainTextExtractor{},
			TypeMarkdown:  MarkdownExtractor{},
			TypeHTML:      NewHTMLExtractor(),
			TypePDF:       NewPDFExtractor(),
		},
		batchSize: 64,
		logger:    langpipe.NopLogger(),
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// IngestFile ingests file content into a memory, detecting the content type
// from the filename extension. Re-ingesting the same document name replaces
// its previous chunks.
func (ing *Ingestor) IngestFile(ctx context.Context, memory, filename string, content []byte) (Result, error) {
	ct := ContentTypeFromExtension(filepath.Ext(filename))

	extractor, ok := ing.extractors[ct]
	if !ok {
		extractor = PlainTextExtractor{}
	}
	text, err := extractor.Extract(content)
	if err != nil {
		return Result{}, fmt.Errorf("extract %s: %w", ct, err)
	}

	return ing.IngestText(ctx, memory, filepath.Base(filename), text, ct)
}

// IngestText chunks, embeds, and stores already-extracted text.
func (ing *Ingestor) IngestText(ctx context.Context, memory, docName, text string, ct ContentType) (Result, error) {
	chunker := ing.chunker
	if ct == TypeMarkdown {
		chunker = ing.mdChunker
	}
	texts := chunker.Chunk(text)
	if len(texts) == 0 {
		return Result{Memory: memory, DocName: docName}, nil
	}

	chunks := make([]langpipe.MemoryChunk, 0, len(texts))
	for start := 0; start < len(texts); start += ing.batchSize {
		end := min(start+ing.batchSize, len(texts))
		vectors, err := ing.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return Result{}, fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != end-start {
			return Result{}, fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), end-start)
		}
		for i, vec := range vectors {
			chunks = append(chunks, langpipe.MemoryChunk{
				Text:       texts[start+i],
				Embedding:  vec,
				Attributes: langpipe.ChunkAttributes{DocName: docName},
			})
		}
	}

	if err := ing.store.Put(ctx, memory, docName, chunks); err != nil {
		return Result{}, fmt.Errorf("store: %w", err)
	}

	ing.logger.Info("document ingested",
		"memory", memory,
		"doc", docName,
		"chunks", len(chunks),
	)
	return Result{Memory: memory, DocName: docName, ChunkCount: len(chunks)}, nil
}
