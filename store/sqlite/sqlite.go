// Package sqlite implements langpipe.ChunkStore using pure-Go SQLite.
// Embeddings are stored as JSON text; similarity search happens in-process,
// which is the right trade for local memory sets of a few thousand chunks.
//
// Swap in a different backend (e.g. pgvector) by implementing
// langpipe.ChunkStore with your own package.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/langpipe/langpipe"
	_ "modernc.org/sqlite"
)

// Store implements langpipe.ChunkStore backed by a local SQLite file.
type Store struct {
	db *sql.DB
}

var _ langpipe.ChunkStore = (*Store)(nil)

// Open opens (or creates) the database file and ensures the schema exists.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS memory_chunks (
		id TEXT PRIMARY KEY,
		memory TEXT NOT NULL,
		doc_name TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_memory_chunks_memory ON memory_chunks (memory)`)
	return err
}

// Put stores embedded chunks for one document, replacing any previous
// version of that document in the memory.
func (s *Store) Put(ctx context.Context, memory, docName string, chunks []langpipe.MemoryChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memory_chunks WHERE memory = ? AND doc_name = ?`, memory, docName); err != nil {
		return err
	}

	now := langpipe.NowUnix()
	for i, c := range chunks {
		emb, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_chunks (id, memory, doc_name, chunk_index, text, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			langpipe.NewID(), memory, docName, i, c.Text, string(emb), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Chunks returns every chunk of the named memories, in insertion order.
func (s *Store) Chunks(ctx context.Context, memoryNames []string) ([]langpipe.MemoryChunk, error) {
	if len(memoryNames) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(memoryNames)), ",")
	args := make([]any, len(memoryNames))
	for i, name := range memoryNames {
		args[i] = name
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT text, doc_name, embedding FROM memory_chunks
		 WHERE memory IN (`+placeholders+`)
		 ORDER BY memory, doc_name, chunk_index`, args...)
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT doc_name FROM memory_chunks WHERE memory = ? ORDER BY doc_name`, memory)
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
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_chunks WHERE memory = ? AND doc_name = ?`, memory, docName)
	return err
}
