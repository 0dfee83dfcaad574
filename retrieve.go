package langpipe

import (
	"context"
	"log/slog"
	"math"
	"sort"
)

// DefaultTopK bounds how many similar chunks are attached to the prompt
// when no limit is configured.
const DefaultTopK = 4

// ChunkAttributes carries chunk provenance. DocName is the source document
// the chunk was cut from.
type ChunkAttributes struct {
	DocName string `json:"doc_name"`
}

// MemoryChunk is one embedded slice of a document, produced at
// document-embedding time by the ingest pipeline and consumed read-only by
// similarity search.
type MemoryChunk struct {
	Text       string          `json:"text"`
	Embedding  []float32       `json:"embedding"`
	Attributes ChunkAttributes `json:"attributes"`
}

// SimilarChunk is a MemoryChunk plus its cosine similarity to the query, in
// [-1, 1]. Ephemeral: created per query, never persisted.
type SimilarChunk struct {
	MemoryChunk
	Similarity float32 `json:"similarity"`
}

// ChunkStore loads the embedded chunks of named memories. The store is an
// external collaborator; chunk sets are loaded per retrieval call and not
// cached inside this core.
type ChunkStore interface {
	Chunks(ctx context.Context, memoryNames []string) ([]MemoryChunk, error)
}

// RetrievalEngine embeds a query, scores stored chunks by cosine
// similarity, and returns the top-K. Holds no session state; safe for
// concurrent use across sessions.
type RetrievalEngine struct {
	embedder Embedder
	store    ChunkStore
	topK     int
	logger   *slog.Logger
}

// RetrievalOption configures a RetrievalEngine.
type RetrievalOption func(*RetrievalEngine)

// WithTopK overrides the DefaultTopK result bound.
func WithTopK(k int) RetrievalOption {
	return func(e *RetrievalEngine) { e.topK = k }
}

// WithRetrievalLogger injects a logger; defaults to a no-op.
func WithRetrievalLogger(l *slog.Logger) RetrievalOption {
	return func(e *RetrievalEngine) { e.logger = l }
}

// NewRetrievalEngine creates a retrieval engine over the given embedding
// backend and chunk store.
func NewRetrievalEngine(embedder Embedder, store ChunkStore, opts ...RetrievalOption) *RetrievalEngine {
	e := &RetrievalEngine{
		embedder: embedder,
		store:    store,
		topK:     DefaultTopK,
		logger:   nopLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve embeds the query and returns up to topK chunks from the named
// memories, scored and sorted by cosine similarity descending. An empty
// memory list, empty query, empty chunk set, or topK <= 0 returns an empty
// result, never an error.
func (e *RetrievalEngine) Retrieve(ctx context.Context, query string, memoryNames []string, topK int) ([]SimilarChunk, error) {
	if len(memoryNames) == 0 || query == "" || topK <= 0 {
		return nil, nil
	}

	embeddings, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, nil
	}

	chunks, err := e.store.Chunks(ctx, memoryNames)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	similar := CosineSearch(chunks, embeddings[0], topK)
	e.logger.Debug("memory retrieval",
		"memories", len(memoryNames),
		"chunks", len(chunks),
		"returned", len(similar))
	return similar, nil
}

// Context derives the retrieval query from the most recent user message and
// returns the top chunks for the pipe's attached memories. No memories or
// no user message is a no-op, not an error.
func (e *RetrievalEngine) Context(ctx context.Context, messages []Message, memoryNames []string) ([]SimilarChunk, error) {
	if len(memoryNames) == 0 {
		return nil, nil
	}
	query := lastUserContent(messages)
	if query == "" {
		return nil, nil
	}
	return e.Retrieve(ctx, query, memoryNames, e.topK)
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// CosineSearch scores every chunk against the query embedding, sorts
// descending by similarity (stable: ties keep original chunk order), and
// returns the first topK.
func CosineSearch(chunks []MemoryChunk, query []float32, topK int) []SimilarChunk {
	if len(chunks) == 0 || topK <= 0 {
		return nil
	}

	scored := make([]SimilarChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = SimilarChunk{MemoryChunk: c, Similarity: CosineSimilarity(query, c.Embedding)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

// CosineSimilarity computes dot(a,b) / (||a|| * ||b||). A zero-magnitude
// vector (or mismatched lengths beyond the shared prefix) yields 0 rather
// than dividing by zero.
func CosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
