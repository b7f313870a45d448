package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/memvra/embedkit/internal/logger"
	"github.com/memvra/embedkit/internal/scanner"
)

func newWatchCmd() *cobra.Command {
	var debounceMs int

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and re-embed changed files",
		Long: `Start a long-running watcher that monitors a directory for file changes
(create, modify, delete) and incrementally updates the local index.

Changes are debounced so that rapid edits (e.g. saving multiple files at once)
are batched into a single re-index pass.

Press Ctrl-C to stop.`,
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

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			ignore := scanner.NewIgnoreMatcher(root)

			// Add all non-ignored directories recursively.
			if err := addWatchDirs(watcher, root, ignore); err != nil {
				return fmt.Errorf("add watch directories: %w", err)
			}

			w := &watchLoop{
				root:     root,
				ignore:   ignore,
				maxLines: cfg.Index.ChunkMaxLines,
				ix:       &indexer{store: st, embedder: emb, batchSize: cfg.Index.BatchSize},
				out:      cmd.OutOrStdout(),
			}

			debounce := time.Duration(debounceMs) * time.Millisecond
			fmt.Fprintf(w.out, "Watching %s for changes (debounce %s). Press Ctrl-C to stop.\n", root, debounce)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w.run(ctx, watcher, debounce)
			fmt.Fprintln(w.out, "\nStopping watcher.")
			return nil
		},
	}

	cmd.Flags().IntVar(&debounceMs, "debounce", 500, "debounce interval in milliseconds")

	return cmd
}

// watchLoop turns debounced file events into index updates.
type watchLoop struct {
	root     string
	ignore   *scanner.IgnoreMatcher
	maxLines int
	ix       *indexer
	out      io.Writer
}

func (w *watchLoop) run(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration) {
	// Collect changed relative paths, debounce, then process.
	pending := make(map[string]fsnotify.Op)
	timer := time.NewTimer(debounce)
	timer.Stop() // Don't fire immediately.

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			rel, err := filepath.Rel(w.root, event.Name)
			if err != nil || rel == "." {
				continue
			}
			if shouldIgnoreEvent(rel, w.ignore) {
				continue
			}

			// If a new directory was created, start watching it.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !scanner.HardIgnore(filepath.Base(event.Name)) {
						_ = watcher.Add(event.Name)
					}
					continue
				}
			}

			if scanner.SkipFile(filepath.Base(rel)) {
				continue
			}

			pending[filepath.ToSlash(rel)] |= event.Op
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := pending
			pending = make(map[string]fsnotify.Op)

			w.processChanges(ctx, batch)
		}
	}
}

// addWatchDirs recursively adds directories to the watcher, skipping ignored ones.
func addWatchDirs(watcher *fsnotify.Watcher, root string, ignore *scanner.IgnoreMatcher) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if scanner.HardIgnore(d.Name()) {
			return filepath.SkipDir
		}
		rel, _ := filepath.Rel(root, path)
		if rel != "." && ignore.Match(filepath.ToSlash(rel)+"/") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// shouldIgnoreEvent checks whether a relative path should be ignored by the watcher.
func shouldIgnoreEvent(rel string, ignore *scanner.IgnoreMatcher) bool {
	return scanner.IgnoredPath(filepath.ToSlash(rel), ignore)
}

// processChanges handles a batch of file change events.
func (w *watchLoop) processChanges(ctx context.Context, batch map[string]fsnotify.Op) {
	var stats indexStats

	for rel, op := range batch {
		absPath := filepath.Join(w.root, filepath.FromSlash(rel))

		// If the file was removed (or renamed away), prune it.
		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			if _, err := os.Stat(absPath); os.IsNotExist(err) {
				if pruneDeletedFile(w.ix.store, rel) {
					stats.deleted++
				}
				continue
			}
		}

		// File was created or modified: scan and re-embed.
		sf, err := scanner.ScanFile(w.root, rel, w.maxLines, w.ignore)
		if err != nil || sf == nil {
			continue
		}

		status, n, err := w.ix.indexFile(ctx, *sf)
		if err != nil {
			logger.Warn("re-index failed", "path", rel, "error", err)
			continue
		}
		stats.count(status, n)
	}

	if stats.added+stats.modified+stats.deleted == 0 {
		return
	}

	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(w.out, "[%s] +%d ~%d -%d (%d chunks embedded)\n", ts, stats.added, stats.modified, stats.deleted, stats.chunks)
}
