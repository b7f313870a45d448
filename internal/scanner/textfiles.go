package scanner

import (
	"path/filepath"
	"strings"
)

var textExtensions = map[string]bool{
	// prose
	".md": true, ".mdx": true, ".markdown": true, ".txt": true, ".rst": true, ".adoc": true,
	// code
	".go": true, ".py": true, ".rb": true, ".js": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true, ".jsx": true, ".rs": true, ".java": true, ".kt": true,
	".cs": true, ".c": true, ".h": true, ".cpp": true, ".cc": true, ".hpp": true,
	".swift": true, ".php": true, ".scala": true, ".ex": true, ".exs": true,
	".lua": true, ".sh": true, ".bash": true, ".zsh": true, ".sql": true,
	".vue": true, ".svelte": true, ".proto": true, ".graphql": true, ".tf": true,
	// markup and config
	".html": true, ".htm": true, ".css": true, ".scss": true, ".xml": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".csv": true,
}

var textNames = map[string]bool{
	"Dockerfile": true,
	"Makefile":   true,
	"README":     true,
	"LICENSE":    true,
}

// IsTextFile reports whether name looks like a text file worth embedding.
func IsTextFile(name string) bool {
	base := filepath.Base(name)
	if textNames[base] {
		return true
	}
	return textExtensions[strings.ToLower(filepath.Ext(base))]
}
