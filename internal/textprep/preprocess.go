package textprep

import (
	"sync"
	"unicode/utf8"

	"github.com/memvra/embedkit/internal/logger"
)

// MaxTokens is the input budget shared by the supported embedding models.
const MaxTokens = 8192

// charsPerToken approximates token length when no tokenizer is available.
const charsPerToken = 4

// Preprocessor prepares text for embedding: empty input becomes a single
// space and long input is cut to the token budget.
type Preprocessor struct {
	maxTokens int
	tok       *Tokenizer // nil means character approximation
}

// NewPreprocessor returns a Preprocessor with the given token budget. A nil
// tokenizer selects the character approximation.
func NewPreprocessor(maxTokens int, tok *Tokenizer) *Preprocessor {
	if maxTokens <= 0 {
		maxTokens = MaxTokens
	}
	return &Preprocessor{maxTokens: maxTokens, tok: tok}
}

// Process prepares a single text.
func (p *Preprocessor) Process(text string) string {
	if text == "" {
		return " "
	}
	if p.tok != nil {
		return p.tok.Truncate(text, p.maxTokens)
	}
	return truncateRunes(text, p.maxTokens*charsPerToken)
}

// ProcessAll prepares each text in order.
func (p *Preprocessor) ProcessAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = p.Process(t)
	}
	return out
}

// Approximate returns a preprocessing func that never loads a tokenizer.
func Approximate(maxTokens int) func(string) string {
	return NewPreprocessor(maxTokens, nil).Process
}

var (
	defaultOnce sync.Once
	defaultPrep *Preprocessor
)

// Default returns the process-wide preprocessing func. The tokenizer is
// loaded on first use; if that fails the character approximation is used.
func Default() func(string) string {
	return func(text string) string {
		defaultOnce.Do(func() {
			tok, err := NewTokenizer()
			if err != nil {
				logger.Warn("tokenizer unavailable, using character approximation", "error", err)
			}
			defaultPrep = NewPreprocessor(MaxTokens, tok)
		})
		return defaultPrep.Process(text)
	}
}

func truncateRunes(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
