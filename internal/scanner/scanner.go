// Package scanner walks a directory tree and splits text files into chunks
// for embedding.
package scanner

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// MaxFileSize bounds the files read by the scanner.
const MaxFileSize = 1 << 20

// ScannedFile holds a file's identity and its chunks.
type ScannedFile struct {
	Path        string // relative to the scan root, slash-separated
	ContentHash string
	Chunks      []Chunk
}

// ScanResult holds the output of a full scan.
type ScanResult struct {
	Files  []ScannedFile
	Errors []error
}

// ScanOptions controls scanner behaviour.
type ScanOptions struct {
	Root          string
	MaxChunkLines int
}

// Scan walks the tree, hashes files, and splits them into chunks.
// It does NOT write to the store; that is the caller's responsibility.
func Scan(opts ScanOptions) ScanResult {
	root := opts.Root
	ignore := NewIgnoreMatcher(root)

	var result ScanResult
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil // Skip unreadable entries.
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if HardIgnore(d.Name()) || ignore.Match(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		sf, err := ScanFile(root, rel, opts.MaxChunkLines, ignore)
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil
		}
		if sf != nil {
			result.Files = append(result.Files, *sf)
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	return result
}

// ScanFile scans a single file. relPath is relative to root. Returns nil
// if the file should be skipped (ignored, binary, too large).
func ScanFile(root, relPath string, maxChunkLines int, ignore *IgnoreMatcher) (*ScannedFile, error) {
	if SkipFile(filepath.Base(relPath)) || IgnoredPath(relPath, ignore) {
		return nil, nil
	}

	absPath := filepath.Join(root, relPath)
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", relPath, err)
	}
	if !info.Mode().IsRegular() || info.Size() > MaxFileSize {
		return nil, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}

	return &ScannedFile{
		Path:        filepath.ToSlash(relPath),
		ContentHash: fmt.Sprintf("%x", sha256.Sum256(content)),
		Chunks:      ChunkFile(string(content), relPath, maxChunkLines),
	}, nil
}
