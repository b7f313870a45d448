package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/memvra/embedkit/internal/adapter"
	"github.com/memvra/embedkit/internal/logger"
	"github.com/memvra/embedkit/internal/scanner"
	"github.com/memvra/embedkit/internal/store"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Embed a directory into the local search index",
		Long: `Scan a directory (default: the current one), honouring .gitignore, and
embed every changed text file into the local vector store. Files whose
content hash is unchanged are skipped; files that disappeared are removed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootArg(args)
			if err != nil {
				return err
			}

			cfg, emb, err := commandEnv()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, emb)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanning %s...\n", root)
			result := scanner.Scan(scanner.ScanOptions{Root: root, MaxChunkLines: cfg.Index.ChunkMaxLines})
			if len(result.Errors) > 0 {
				fmt.Fprintf(os.Stderr, "  Warning: %d file(s) could not be read\n", len(result.Errors))
				for _, e := range result.Errors {
					logger.Debug("scan error", "error", e)
				}
			}

			ix := &indexer{store: st, embedder: emb, batchSize: cfg.Index.BatchSize, force: force}

			bar := progressbar.NewOptions(len(result.Files),
				progressbar.OptionSetDescription("  Embedding files"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
			)
			stats, err := ix.indexAll(cmd.Context(), result.Files, func() { _ = bar.Add(1) })
			_ = bar.Finish()
			if err != nil {
				return err
			}

			files, chunks, _ := st.Counts()
			fmt.Fprintf(out, "+%d ~%d -%d (%d chunks embedded)\n", stats.added, stats.modified, stats.deleted, stats.chunks)
			meta := st.Meta()
			fmt.Fprintf(out, "%d files, %d chunks in %s (%s, %d dimensions)\n", files, chunks, cfg.StorePath(), meta.Model, meta.Dimension)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-embed files even if unchanged")
	return cmd
}

// rootArg resolves the directory argument, defaulting to the working directory.
func rootArg(args []string) (string, error) {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", root)
	}
	return root, nil
}

// fileStatus describes what happened when a file was indexed.
type fileStatus int

const (
	fileUnchanged fileStatus = iota
	fileAdded
	fileModified
)

type indexStats struct {
	added, modified, deleted, chunks int
}

// indexer embeds scanned files into a store.
type indexer struct {
	store     *store.Store
	embedder  adapter.BatchEmbedder
	batchSize int
	force     bool
}

// indexAll indexes files and prunes store entries whose file is no longer
// present. tick is called once per file.
func (ix *indexer) indexAll(ctx context.Context, files []scanner.ScannedFile, tick func()) (indexStats, error) {
	var stats indexStats
	seen := make(map[string]bool, len(files))

	for _, sf := range files {
		seen[sf.Path] = true
		status, n, err := ix.indexFile(ctx, sf)
		if tick != nil {
			tick()
		}
		if err != nil {
			var remote *adapter.RemoteCallError
			if errors.As(err, &remote) || errors.Is(err, store.ErrDimensionMismatch) {
				return stats, err
			}
			logger.Warn("index file failed", "path", sf.Path, "error", err)
			continue
		}
		stats.count(status, n)
	}

	existing, err := ix.store.ListFiles()
	if err != nil {
		return stats, err
	}
	for _, f := range existing {
		if seen[f.Path] {
			continue
		}
		if err := ix.store.DeleteFile(f.ID); err != nil {
			return stats, err
		}
		stats.deleted++
	}
	return stats, nil
}

func (s *indexStats) count(status fileStatus, chunks int) {
	switch status {
	case fileAdded:
		s.added++
	case fileModified:
		s.modified++
	default:
		return
	}
	s.chunks += chunks
}

// indexFile embeds a file's chunks and replaces its stored chunks. Files
// whose content hash is unchanged are skipped unless force is set.
func (ix *indexer) indexFile(ctx context.Context, sf scanner.ScannedFile) (fileStatus, int, error) {
	existing, err := ix.store.GetFileByPath(sf.Path)
	isNew := errors.Is(err, store.ErrNotFound)
	if err != nil && !isNew {
		return fileUnchanged, 0, err
	}
	if !isNew && !ix.force && existing.ContentHash == sf.ContentHash {
		return fileUnchanged, 0, nil
	}

	// Embed before touching the store; ReplaceFile then swaps the file's
	// chunks in one transaction, so any failure keeps the old chunks and hash.
	vectors, err := ix.embedChunks(ctx, sf.Chunks)
	if err != nil {
		return fileUnchanged, 0, fmt.Errorf("embed %s: %w", sf.Path, err)
	}

	chunks := make([]store.Chunk, len(sf.Chunks))
	for i, c := range sf.Chunks {
		chunks[i] = store.Chunk{Content: c.Content, StartLine: c.StartLine, EndLine: c.EndLine}
	}
	if _, err := ix.store.ReplaceFile(store.File{Path: sf.Path, ContentHash: sf.ContentHash}, chunks, vectors); err != nil {
		return fileUnchanged, 0, fmt.Errorf("store %w", err)
	}

	if isNew {
		return fileAdded, len(sf.Chunks), nil
	}
	return fileModified, len(sf.Chunks), nil
}

// embedChunks embeds chunk contents in batches of batchSize.
func (ix *indexer) embedChunks(ctx context.Context, chunks []scanner.Chunk) ([][]float32, error) {
	size := ix.batchSize
	if size <= 0 {
		size = 32
	}

	out := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += size {
		end := min(i+size, len(chunks))
		texts := make([]string, end-i)
		for j, c := range chunks[i:end] {
			texts[j] = c.Content
		}

		vecs, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(texts))
		}
		out = append(out, adapter.Values(vecs)...)
	}
	return out, nil
}

// pruneDeletedFile removes a file and its vectors from the store.
func pruneDeletedFile(st *store.Store, path string) bool {
	existing, err := st.GetFileByPath(path)
	if err != nil {
		return false
	}
	if err := st.DeleteFile(existing.ID); err != nil {
		logger.Warn("prune failed", "path", path, "error", err)
		return false
	}
	return true
}
