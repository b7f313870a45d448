package scanner

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreMatcher wraps a gitignore pattern matcher.
type IgnoreMatcher struct {
	gi *gitignore.GitIgnore
}

// NewIgnoreMatcher loads .gitignore from root. Without one, the matcher
// accepts everything.
func NewIgnoreMatcher(root string) *IgnoreMatcher {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return &IgnoreMatcher{}
	}
	gi, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return &IgnoreMatcher{}
	}
	return &IgnoreMatcher{gi: gi}
}

// Match returns true if the given relative path should be ignored.
func (m *IgnoreMatcher) Match(relPath string) bool {
	if m == nil || m.gi == nil {
		return false
	}
	return m.gi.MatchesPath(relPath)
}

// hardIgnored directories are skipped regardless of .gitignore.
var hardIgnored = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	".git":         true,
	".hg":          true,
	".svn":         true,
	"dist":         true,
	"build":        true,
	".embedkit":    true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".idea":        true,
	".vscode":      true,
	"coverage":     true,
	"target":       true,
}

// HardIgnore returns true if the directory name is always excluded.
func HardIgnore(name string) bool {
	return hardIgnored[name]
}

// IgnoredPath reports whether any directory component of rel is hard-ignored
// or rel is matched by the ignore file.
func IgnoredPath(rel string, ignore *IgnoreMatcher) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if HardIgnore(part) {
			return true
		}
	}
	return ignore.Match(rel)
}

// lockFiles are generated files that add noise to an index.
var lockFiles = map[string]bool{
	"Gemfile.lock":      true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"go.sum":            true,
	"Cargo.lock":        true,
	"composer.lock":     true,
	"poetry.lock":       true,
	"Pipfile.lock":      true,
}

// SkipFile returns true for files that should never be embedded.
func SkipFile(name string) bool {
	if lockFiles[name] {
		return true
	}
	if strings.HasSuffix(name, ".min.js") || strings.HasSuffix(name, ".min.css") {
		return true
	}
	return !IsTextFile(name)
}
