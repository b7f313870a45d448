package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/memvra/embedkit/internal/adapter"
	"github.com/memvra/embedkit/internal/config"
	"github.com/memvra/embedkit/internal/scanner"
	"github.com/memvra/embedkit/internal/store"
)

const testDim = 4

// stubEmbedder returns deterministic vectors and records batch sizes.
type stubEmbedder struct {
	dim     int
	model   string
	err     error
	batches []int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) (adapter.Vector, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return adapter.Vector{}, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([]adapter.Vector, error) {
	s.batches = append(s.batches, len(texts))
	if s.err != nil {
		return nil, s.err
	}
	out := make([]adapter.Vector, len(texts))
	for i, t := range texts {
		v := make([]float32, s.dim)
		v[0] = float32(len(t))
		out[i] = adapter.Vector{Values: v, Dimension: s.dim}
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int   { return s.dim }
func (s *stubEmbedder) Provider() string { return "Stub" }
func (s *stubEmbedder) Model() string    { return s.model }
func (s *stubEmbedder) SetModel(m string) {
	s.model = m
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.Meta{Provider: "Stub", Model: "stub", Dimension: testDim})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestIndexer(t *testing.T, emb *stubEmbedder) *indexer {
	t.Helper()
	return &indexer{store: newTestStore(t), embedder: emb, batchSize: 2}
}

func writeTestFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func scannedFile(path, hash string, contents ...string) scanner.ScannedFile {
	sf := scanner.ScannedFile{Path: path, ContentHash: hash}
	for i, c := range contents {
		sf.Chunks = append(sf.Chunks, scanner.Chunk{Content: c, StartLine: i + 1, EndLine: i + 1})
	}
	return sf
}

func TestIndexFile_AddUnchangedModified(t *testing.T) {
	emb := &stubEmbedder{dim: testDim}
	ix := newTestIndexer(t, emb)
	ctx := context.Background()

	status, n, err := ix.indexFile(ctx, scannedFile("a.go", "h1", "one", "two", "three"))
	if err != nil {
		t.Fatalf("indexFile: %v", err)
	}
	if status != fileAdded || n != 3 {
		t.Errorf("first index: status=%v chunks=%d", status, n)
	}
	if len(emb.batches) != 2 || emb.batches[0] != 2 || emb.batches[1] != 1 {
		t.Errorf("expected batches [2 1], got %v", emb.batches)
	}

	status, _, err = ix.indexFile(ctx, scannedFile("a.go", "h1", "one", "two", "three"))
	if err != nil || status != fileUnchanged {
		t.Errorf("same hash: status=%v err=%v", status, err)
	}
	if len(emb.batches) != 2 {
		t.Error("unchanged file should not be re-embedded")
	}

	status, n, err = ix.indexFile(ctx, scannedFile("a.go", "h2", "only"))
	if err != nil || status != fileModified || n != 1 {
		t.Errorf("changed hash: status=%v chunks=%d err=%v", status, n, err)
	}
	_, chunks, _ := ix.store.Counts()
	if chunks != 1 {
		t.Errorf("old chunks should be replaced, got %d", chunks)
	}
}

func TestIndexFile_Force(t *testing.T) {
	emb := &stubEmbedder{dim: testDim}
	ix := newTestIndexer(t, emb)
	ctx := context.Background()

	if _, _, err := ix.indexFile(ctx, scannedFile("a.go", "h1", "x")); err != nil {
		t.Fatal(err)
	}
	ix.force = true
	status, _, err := ix.indexFile(ctx, scannedFile("a.go", "h1", "x"))
	if err != nil || status != fileModified {
		t.Errorf("forced re-index: status=%v err=%v", status, err)
	}
}

func TestIndexFile_EmbedFailureKeepsOldChunks(t *testing.T) {
	emb := &stubEmbedder{dim: testDim}
	ix := newTestIndexer(t, emb)
	ctx := context.Background()

	if _, _, err := ix.indexFile(ctx, scannedFile("a.go", "h1", "x", "y")); err != nil {
		t.Fatal(err)
	}

	emb.err = &adapter.RemoteCallError{Provider: "Stub", Op: "embed batch", Err: errors.New("down")}
	if _, _, err := ix.indexFile(ctx, scannedFile("a.go", "h2", "z")); err == nil {
		t.Fatal("expected error")
	}

	f, err := ix.store.GetFileByPath("a.go")
	if err != nil {
		t.Fatal(err)
	}
	if f.ContentHash != "h1" {
		t.Errorf("hash should be unchanged after failure, got %q", f.ContentHash)
	}
	_, chunks, _ := ix.store.Counts()
	if chunks != 2 {
		t.Errorf("old chunks should survive, got %d", chunks)
	}
}

func TestIndexAll_PrunesDeleted(t *testing.T) {
	ix := newTestIndexer(t, &stubEmbedder{dim: testDim})
	ctx := context.Background()

	ticks := 0
	stats, err := ix.indexAll(ctx, []scanner.ScannedFile{
		scannedFile("a.go", "h", "a"),
		scannedFile("b.go", "h", "b"),
	}, func() { ticks++ })
	if err != nil {
		t.Fatalf("indexAll: %v", err)
	}
	if stats.added != 2 || stats.chunks != 2 || ticks != 2 {
		t.Errorf("unexpected stats %+v ticks=%d", stats, ticks)
	}

	stats, err = ix.indexAll(ctx, []scanner.ScannedFile{scannedFile("a.go", "h", "a")}, nil)
	if err != nil {
		t.Fatalf("indexAll: %v", err)
	}
	if stats.deleted != 1 || stats.added != 0 || stats.modified != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if _, err := ix.store.GetFileByPath("b.go"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("b.go should be pruned, got %v", err)
	}
}

func TestIndexAll_StopsOnRemoteError(t *testing.T) {
	emb := &stubEmbedder{dim: testDim, err: &adapter.RemoteCallError{Provider: "Stub", Op: "embed batch", Err: errors.New("401")}}
	ix := newTestIndexer(t, emb)

	_, err := ix.indexAll(context.Background(), []scanner.ScannedFile{
		scannedFile("a.go", "h", "a"),
		scannedFile("b.go", "h", "b"),
	}, nil)

	var remote *adapter.RemoteCallError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteCallError, got %v", err)
	}
	if len(emb.batches) != 1 {
		t.Errorf("indexing should stop after the first remote failure, got %d calls", len(emb.batches))
	}
}

func TestEmbedChunks_CountMismatch(t *testing.T) {
	ix := &indexer{embedder: shortEmbedder{}, batchSize: 8}
	_, err := ix.embedChunks(context.Background(), []scanner.Chunk{{Content: "a"}, {Content: "b"}})
	if err == nil {
		t.Fatal("expected error when provider returns fewer vectors")
	}
}

type shortEmbedder struct{}

func (shortEmbedder) EmbedBatch(context.Context, []string) ([]adapter.Vector, error) {
	return []adapter.Vector{{Values: make([]float32, testDim), Dimension: testDim}}, nil
}

func TestRootArg(t *testing.T) {
	dir := t.TempDir()
	root, err := rootArg([]string{dir})
	if err != nil || root != dir {
		t.Errorf("rootArg(%q) = %q, %v", dir, root, err)
	}

	writeTestFile(t, dir, "f.txt", "x")
	if _, err := rootArg([]string{filepath.Join(dir, "f.txt")}); err == nil {
		t.Error("expected error for a file argument")
	}
}

func TestIndexAll_StoreFailureKeepsFileRetryable(t *testing.T) {
	emb := &stubEmbedder{dim: testDim}
	ix := newTestIndexer(t, emb)
	ctx := context.Background()

	if _, err := ix.indexAll(ctx, []scanner.ScannedFile{scannedFile("a.txt", "h1", "x", "y")}, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Vectors of the wrong width make the chunk inserts fail.
	emb.dim = testDim + 1
	_, err := ix.indexAll(ctx, []scanner.ScannedFile{
		scannedFile("a.txt", "h2", "p", "q"),
		scannedFile("new.txt", "h1", "n"),
	}, nil)
	if !errors.Is(err, store.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	f, err := ix.store.GetFileByPath("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if f.ContentHash != "h1" {
		t.Errorf("hash should be rolled back to h1, got %q", f.ContentHash)
	}
	_, chunks, _ := ix.store.Counts()
	if chunks != 2 {
		t.Errorf("previous chunks should survive a failed store write, got %d", chunks)
	}

	emb.dim = testDim
	stats, err := ix.indexAll(ctx, []scanner.ScannedFile{scannedFile("a.txt", "h2", "p", "q")}, nil)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if stats.modified != 1 || stats.chunks != 2 {
		t.Errorf("retry should re-embed a.txt, got %+v", stats)
	}
}

func TestIndexFile_NewFileNotRecordedOnStoreFailure(t *testing.T) {
	ix := newTestIndexer(t, &stubEmbedder{dim: testDim + 1})

	if _, _, err := ix.indexFile(context.Background(), scannedFile("b.txt", "h", "x")); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ix.store.GetFileByPath("b.txt"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("b.txt should not be recorded, got %v", err)
	}
}

func TestOpenSearchIndex(t *testing.T) {
	cfg := config.DefaultGlobal()
	cfg.Store.Path = filepath.Join(t.TempDir(), "index.db")

	if st, reason := openSearchIndex(cfg, &stubEmbedder{dim: testDim, model: "stub"}); st != nil || !strings.Contains(reason, "no index") {
		t.Fatalf("missing store: st=%v reason=%q", st, reason)
	}

	st, err := store.Open(cfg.Store.Path, store.Meta{Provider: "Stub", Model: "stub", Dimension: testDim})
	if err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, reason := openSearchIndex(cfg, &stubEmbedder{dim: testDim, model: "stub"})
	if st == nil {
		t.Fatalf("matching store should open: %s", reason)
	}
	st.Close()

	st, reason = openSearchIndex(cfg, &stubEmbedder{dim: 8, model: "other"})
	if st != nil {
		st.Close()
		t.Fatal("store built with another model should not open")
	}
	if !strings.Contains(reason, "stub") || !strings.Contains(reason, "other") {
		t.Errorf("reason should name both models, got %q", reason)
	}
}
