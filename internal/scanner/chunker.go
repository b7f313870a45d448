package scanner

import (
	"path/filepath"
	"strings"
)

const (
	DefaultMaxLines = 150
	DefaultOverlap  = 10
)

// Chunk is a contiguous line range of a file, ready to be embedded.
type Chunk struct {
	Content   string
	StartLine int // 1-based
	EndLine   int // 1-based, inclusive
}

// ChunkFile splits content into overlapping line windows. Markdown files are
// split on "##"/"###" headings instead. Whitespace-only chunks are dropped.
func ChunkFile(content, path string, maxLines int) []Chunk {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	lines := strings.Split(content, "\n")

	var chunks []Chunk
	if isMarkdown(path) {
		chunks = chunkMarkdown(lines, maxLines)
	} else {
		chunks = chunkByLines(lines, maxLines, DefaultOverlap)
	}

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) != "" {
			out = append(out, c)
		}
	}
	return out
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdx", ".markdown":
		return true
	}
	return false
}

// chunkByLines performs line-based chunking with overlap.
func chunkByLines(lines []string, maxLines, overlap int) []Chunk {
	total := len(lines)
	if total <= maxLines {
		return []Chunk{{
			Content:   strings.Join(lines, "\n"),
			StartLine: 1,
			EndLine:   total,
		}}
	}

	advance := maxLines - overlap
	if advance <= 0 {
		advance = maxLines
	}

	var chunks []Chunk
	for start := 0; start < total; start += advance {
		end := min(start+maxLines, total)
		chunks = append(chunks, Chunk{
			Content:   strings.Join(lines[start:end], "\n"),
			StartLine: start + 1,
			EndLine:   end,
		})
		if end == total {
			break
		}
	}
	return chunks
}

// chunkMarkdown splits markdown by headings (## or ###).
func chunkMarkdown(lines []string, maxLines int) []Chunk {
	var chunks []Chunk
	var current []string
	startLine := 1

	flush := func(endLine int) {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Content:   strings.Join(current, "\n"),
			StartLine: startLine,
			EndLine:   endLine,
		})
		current = nil
	}

	for i, line := range lines {
		lineNum := i + 1
		isHeading := strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ")

		if isHeading && len(current) > 0 {
			flush(lineNum - 1)
			startLine = lineNum
		}

		current = append(current, line)

		if len(current) >= maxLines {
			flush(lineNum)
			startLine = lineNum + 1
		}
	}

	flush(len(lines))
	return chunks
}
