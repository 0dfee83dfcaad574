// Package postgres implements langpipe.ChunkStore using PostgreSQL with
// pgvector for embedding storage.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/langpipe/langpipe"
)

// Store implements langpipe.ChunkStore backed by PostgreSQL with pgvector.
type Store struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

type pgConfig struct {
	embeddingDimension int // 0 = untyped vector column
}

// Option configures a PostgreSQL Store.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension (e.g. 1536, 768).
// When set, CREATE TABLE uses vector(N) instead of untyped vector, catching
// dimension mismatches at insert time. Only affects new table creation.
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

var _ langpipe.ChunkStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool. Close releases the
// pool; callers sharing the pool elsewhere should not call it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{pool: pool, cfg: cfg}
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

// Init creates the pgvector extension, the chunks table, and indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_chunks (
			id TEXT PRIMARY KEY,
			memory TEXT NOT NULL,
			doc_name TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			embedding %s NOT NULL,
			created_at BIGINT NOT NULL
		)`, s.vectorType()),

		`CREATE INDEX IF NOT EXISTS idx_memory_chunks_memory ON memory_chunks (memory)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}
	return nil
}

// Put stores embedded chunks for one document, replacing any previous
// version of that document in the memory.
func (s *Store) Put(ctx context.Context, memory, docName string, chunks []langpipe.MemoryChunk) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM memory_chunks WHERE memory = $1 AND doc_name = $2`, memory, docName); err != nil {
			return err
		}
		now := langpipe.NowUnix()
		for i, c := range chunks {
			emb, err := json.Marshal(c.Embedding)
			if err != nil {
				return fmt.Errorf("marshal embedding: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO memory_chunks (id, memory, doc_name, chunk_index, text, embedding, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				langpipe.NewID(), memory, docName, i, c.Text, string(emb), now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Chunks returns every chunk of the named memories, in insertion order.
// The pgvector text form is a JSON-compatible array, so embeddings decode
// straight into []float32.
func (s *Store) Chunks(ctx context.Context, memoryNames []string) ([]langpipe.MemoryChunk, error) {
	if len(memoryNames) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT text, doc_name, embedding::text FROM memory_chunks
		 WHERE memory = ANY($1)
		 ORDER BY memory, doc_name, chunk_index`, memoryNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []langpipe.MemoryChunk
	for rows.Next() {
		var text, docName, embText string
		if err := rows.Scan(&text, &docName, &embText); err != nil {
			return nil, err
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embText), &emb); err != nil {
			continue
		}
		out = append(out, langpipe.MemoryChunk{
			Text:       text,
			Embedding:  emb,
			Attributes: langpipe.ChunkAttributes{DocName: docName},
		})
	}
	return out, rows.Err()
}

// Documents lists the distinct document names stored in a memory.
func (s *Store) Documents(ctx context.Context, memory string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT doc_name FROM memory_chunks WHERE memory = $1 ORDER BY doc_name`, memory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		docs = append(docs, name)
	}
	return docs, rows.Err()
}

// DeleteDocument removes all chunks of one document from a memory.
func (s *Store) DeleteDocument(ctx context.Context, memory, docName string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM memory_chunks WHERE memory = $1 AND doc_name = $2`, memory, docName)
	return err
}
