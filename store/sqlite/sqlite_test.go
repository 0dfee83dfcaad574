package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/langpipe/langpipe"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func chunk(text string, doc string, vec ...float32) langpipe.MemoryChunk {
	return langpipe.MemoryChunk{
		Text:       text,
		Embedding:  vec,
		Attributes: langpipe.ChunkAttributes{DocName: doc},
	}
}

func TestPutAndChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Put(ctx, "docs", "a.md", []langpipe.MemoryChunk{
		chunk("first", "a.md", 0.1, 0.2),
		chunk("second", "a.md", 0.3, 0.4),
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Chunks(ctx, []string{"docs"})
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].Text != "first" || got[1].Text != "second" {
		t.Errorf("insertion order lost: %q, %q", got[0].Text, got[1].Text)
	}
	if got[0].Embedding[1] != 0.2 {
		t.Errorf("embedding round trip failed: %v", got[0].Embedding)
	}
	if got[0].Attributes.DocName != "a.md" {
		t.Errorf("doc name lost: %q", got[0].Attributes.DocName)
	}
}

func TestPut_ReplacesDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "docs", "a.md", []langpipe.MemoryChunk{
		chunk("old one", "a.md", 1),
		chunk("old two", "a.md", 1),
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "docs", "a.md", []langpipe.MemoryChunk{
		chunk("new", "a.md", 1),
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Chunks(ctx, []string{"docs"})
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(got) != 1 || got[0].Text != "new" {
		t.Errorf("re-ingest should replace the document, got %+v", got)
	}
}

func TestChunks_FiltersByMemory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "docs", "a.md", []langpipe.MemoryChunk{chunk("in docs", "a.md", 1)})
	s.Put(ctx, "notes", "b.md", []langpipe.MemoryChunk{chunk("in notes", "b.md", 1)})

	got, err := s.Chunks(ctx, []string{"docs"})
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(got) != 1 || got[0].Text != "in docs" {
		t.Errorf("expected only 'docs' chunks, got %+v", got)
	}

	both, err := s.Chunks(ctx, []string{"docs", "notes"})
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(both) != 2 {
		t.Errorf("expected chunks from both memories, got %d", len(both))
	}
}

func TestChunks_EmptyNames(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Chunks(context.Background(), nil)
	if err != nil || got != nil {
		t.Errorf("expected nil, nil for no memories, got %v, %v", got, err)
	}
}

func TestDocumentsAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "docs", "b.md", []langpipe.MemoryChunk{chunk("b", "b.md", 1)})
	s.Put(ctx, "docs", "a.md", []langpipe.MemoryChunk{chunk("a", "a.md", 1)})

	docs, err := s.Documents(ctx, "docs")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 || docs[0] != "a.md" || docs[1] != "b.md" {
		t.Errorf("expected sorted doc names, got %v", docs)
	}

	if err := s.DeleteDocument(ctx, "docs", "a.md"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	docs, _ = s.Documents(ctx, "docs")
	if len(docs) != 1 || docs[0] != "b.md" {
		t.Errorf("expected only b.md left, got %v", docs)
	}
}
