package store

import (
	"errors"
	"path/filepath"
	"testing"
)

const testDim = 4

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), Meta{Provider: "openai", Model: "test-model", Dimension: testDim})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDatabase(t *testing.T) {
	s := setupTestStore(t)
	if err := s.conn.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if got := s.Meta(); got.Dimension != testDim || got.Model != "test-model" || got.Provider != "openai" {
		t.Errorf("unexpected meta %+v", got)
	}
}

func TestOpen_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")
	s, err := Open(path, Meta{Dimension: testDim})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()
}

func TestOpen_TablesExist(t *testing.T) {
	s := setupTestStore(t)

	for _, table := range []string{"meta", "files", "chunks", "schema_migrations", "vec_chunks"} {
		var count int
		err := s.conn.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("query table %q: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %q not found", table)
		}
	}
}

func TestOpen_MigrationsRecorded(t *testing.T) {
	s := setupTestStore(t)

	var count int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestOpen_PinsEmbeddingSpace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, Meta{Model: "small", Dimension: testDim})
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	s.Close()

	s, err = Open(path, Meta{Model: "small", Dimension: testDim})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s.Close()

	if _, err := Open(path, Meta{Model: "small", Dimension: 8}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := Open(path, Meta{Model: "large", Dimension: testDim}); !errors.Is(err, ErrModelMismatch) {
		t.Errorf("expected ErrModelMismatch, got %v", err)
	}

	meta, ok, err := ReadMeta(path)
	if err != nil || !ok {
		t.Fatalf("ReadMeta: ok=%v err=%v", ok, err)
	}
	if meta.Model != "small" || meta.Dimension != testDim {
		t.Errorf("ReadMeta = %+v", meta)
	}
}

func TestReadMeta_Missing(t *testing.T) {
	_, ok, err := ReadMeta(filepath.Join(t.TempDir(), "none.db"))
	if err != nil || ok {
		t.Errorf("expected ok=false, err=nil; got ok=%v err=%v", ok, err)
	}
}

func TestOpen_InvalidDimension(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "x.db"), Meta{}); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestStore_FileUpsertAndLookup(t *testing.T) {
	s := setupTestStore(t)

	id, err := s.ReplaceFile(File{Path: "main.go", ContentHash: "aaa"}, nil, nil)
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	id2, err := s.ReplaceFile(File{Path: "main.go", ContentHash: "bbb"}, nil, nil)
	if err != nil {
		t.Fatalf("ReplaceFile update: %v", err)
	}
	if id != id2 {
		t.Errorf("upsert should keep the file id: %q != %q", id, id2)
	}

	f, err := s.GetFileByPath("main.go")
	if err != nil {
		t.Fatalf("GetFileByPath: %v", err)
	}
	if f.ContentHash != "bbb" {
		t.Errorf("hash: got %q, want bbb", f.ContentHash)
	}

	if _, err := s.GetFileByPath("missing.go"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ReplaceFileAndSearch(t *testing.T) {
	s := setupTestStore(t)

	chunks := []Chunk{
		{Content: "north", StartLine: 1, EndLine: 1},
		{Content: "east", StartLine: 2, EndLine: 2},
		{Content: "up", StartLine: 3, EndLine: 3},
	}
	vectors := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}}
	if _, err := s.ReplaceFile(File{Path: "doc.md", ContentHash: "h"}, chunks, vectors); err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	matches, err := s.Search([]float32{0.9, 0.1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Content != "north" {
		t.Errorf("closest match: got %q, want north", matches[0].Content)
	}
	if matches[0].Path != "doc.md" {
		t.Errorf("path: got %q", matches[0].Path)
	}
	if matches[0].Similarity() <= matches[1].Similarity() {
		t.Error("matches should be ordered by similarity")
	}

	files, n, err := s.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if files != 1 || n != 3 {
		t.Errorf("counts: files=%d chunks=%d", files, n)
	}
}

func TestStore_ReplaceFile_WrongDimension(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.ReplaceFile(File{Path: "a.txt", ContentHash: "h"}, []Chunk{{Content: "x"}}, [][]float32{{1, 2}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	files, chunks, _ := s.Counts()
	if files != 0 || chunks != 0 {
		t.Errorf("nothing should be stored on failure, got files=%d chunks=%d", files, chunks)
	}
}

func TestStore_DeleteFileRemovesVectors(t *testing.T) {
	s := setupTestStore(t)
	fileID, err := s.ReplaceFile(File{Path: "a.txt", ContentHash: "h"},
		[]Chunk{{Content: "x", StartLine: 1, EndLine: 1}}, [][]float32{{1, 1, 1, 1}})
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	if err := s.DeleteFile(fileID); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	var n int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM vec_chunks`).Scan(&n); err != nil {
		t.Fatalf("count vectors: %v", err)
	}
	if n != 0 {
		t.Errorf("expected vectors to be removed, %d remain", n)
	}
	files, chunks, _ := s.Counts()
	if files != 0 || chunks != 0 {
		t.Errorf("counts after delete: files=%d chunks=%d", files, chunks)
	}
}

func TestStore_ListChunksByFileID(t *testing.T) {
	s := setupTestStore(t)
	var in []Chunk
	var vecs [][]float32
	for i := 3; i >= 1; i-- {
		in = append(in, Chunk{Content: "c", StartLine: i, EndLine: i})
		vecs = append(vecs, []float32{float32(i), 0, 0, 0})
	}
	fileID, err := s.ReplaceFile(File{Path: "a.txt", ContentHash: "h"}, in, vecs)
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	chunks, err := s.ListChunksByFileID(fileID)
	if err != nil {
		t.Fatalf("ListChunksByFileID: %v", err)
	}
	if len(chunks) != 3 || chunks[0].StartLine != 1 || chunks[2].StartLine != 3 {
		t.Errorf("unexpected chunks %+v", chunks)
	}
}

func TestStore_Search_WrongDimension(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.Search([]float32{1}, 3); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestStore_ReplaceFile(t *testing.T) {
	s := setupTestStore(t)

	id, err := s.ReplaceFile(File{Path: "a.txt", ContentHash: "h1"},
		[]Chunk{{Content: "one", StartLine: 1, EndLine: 1}, {Content: "two", StartLine: 2, EndLine: 2}},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	id2, err := s.ReplaceFile(File{Path: "a.txt", ContentHash: "h2"},
		[]Chunk{{Content: "three", StartLine: 1, EndLine: 1}},
		[][]float32{{0, 0, 1, 0}})
	if err != nil {
		t.Fatalf("ReplaceFile again: %v", err)
	}
	if id != id2 {
		t.Errorf("file id should be stable: %q != %q", id, id2)
	}

	chunks, _ := s.ListChunksByFileID(id)
	if len(chunks) != 1 || chunks[0].Content != "three" {
		t.Errorf("chunks should be replaced, got %+v", chunks)
	}
	var n int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM vec_chunks`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("old vectors should be removed, %d remain", n)
	}
}

func TestStore_ReplaceFile_RollsBackOnFailedInsert(t *testing.T) {
	s := setupTestStore(t)

	id, err := s.ReplaceFile(File{Path: "a.txt", ContentHash: "h1"},
		[]Chunk{{Content: "old", StartLine: 1, EndLine: 1}},
		[][]float32{{1, 1, 1, 1}})
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	_, err = s.ReplaceFile(File{Path: "a.txt", ContentHash: "h2"},
		[]Chunk{{Content: "ok", StartLine: 1, EndLine: 1}, {Content: "bad", StartLine: 2, EndLine: 2}},
		[][]float32{{1, 0, 0, 0}, {1, 0}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	f, _ := s.GetFileByPath("a.txt")
	if f.ContentHash != "h1" {
		t.Errorf("hash: got %q, want h1", f.ContentHash)
	}
	chunks, _ := s.ListChunksByFileID(id)
	if len(chunks) != 1 || chunks[0].Content != "old" {
		t.Errorf("old chunks should survive, got %+v", chunks)
	}
	var n int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM vec_chunks`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected the old vector only, got %d", n)
	}
}

func TestStore_ReplaceFile_RollsBackOnSQLError(t *testing.T) {
	s := setupTestStore(t)

	id, err := s.ReplaceFile(File{Path: "a.txt", ContentHash: "h1"},
		[]Chunk{{Content: "old", StartLine: 1, EndLine: 1}},
		[][]float32{{1, 1, 1, 1}})
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}
	if _, err := s.conn.Exec(`
		CREATE TRIGGER reject_chunk BEFORE INSERT ON chunks
		WHEN NEW.content = 'reject'
		BEGIN SELECT RAISE(ABORT, 'chunk rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	_, err = s.ReplaceFile(File{Path: "a.txt", ContentHash: "h2"},
		[]Chunk{{Content: "new", StartLine: 1, EndLine: 1}, {Content: "reject", StartLine: 2, EndLine: 2}},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})
	if err == nil {
		t.Fatal("expected insert failure")
	}

	f, _ := s.GetFileByPath("a.txt")
	if f.ContentHash != "h1" {
		t.Errorf("hash: got %q, want h1", f.ContentHash)
	}
	chunks, _ := s.ListChunksByFileID(id)
	if len(chunks) != 1 || chunks[0].Content != "old" {
		t.Errorf("old chunks should survive, got %+v", chunks)
	}
	var n int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM vec_chunks`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected the old vector only, got %d", n)
	}
}

func TestStore_ReplaceFile_LengthMismatch(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.ReplaceFile(File{Path: "a.txt", ContentHash: "h"}, []Chunk{{Content: "x"}}, nil); err == nil {
		t.Error("expected error for missing embeddings")
	}
	if _, err := s.GetFileByPath("a.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("nothing should be written, got %v", err)
	}
}
