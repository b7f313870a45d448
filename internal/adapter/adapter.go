// Package adapter provides a unified interface for remote embedding providers.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/memvra/embedkit/internal/textprep"
)

// Provider name constants.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// ErrUnknownProvider is returned by New for an unrecognised provider name.
var ErrUnknownProvider = errors.New("adapter: unknown provider")

// Vector is a single embedding result. Dimension is the adapter's resolved
// dimension at call time, not the measured length of Values.
type Vector struct {
	Values    []float32 `json:"vector"`
	Dimension int       `json:"dimension"`
}

// ModelSpec describes a known embedding model.
type ModelSpec struct {
	Dimension   int    `json:"dimension"`
	Description string `json:"description"`
}

// Embedding is the capability every provider adapter implements.
type Embedding interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) (Vector, error)

	// EmbedBatch generates embeddings for texts in one remote call.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)

	// Dimension returns the currently resolved output dimension.
	Dimension() int

	// Provider returns the display name of the remote provider.
	Provider() string
}

// ModelSetter is implemented by adapters whose model can be switched in place.
type ModelSetter interface {
	Model() string
	SetModel(model string)
}

// Config holds the provider-agnostic settings used by New.
type Config struct {
	Model   string
	APIKey  string
	BaseURL string // OpenAI/Gemini endpoint override, or the Ollama host
}

// Option customises an adapter at construction time.
type Option func(*options)

type options struct {
	preprocess func(string) string
	httpClient *http.Client
}

// WithPreprocess replaces the default text preprocessing step.
func WithPreprocess(fn func(string) string) Option {
	return func(o *options) { o.preprocess = fn }
}

// WithHTTPClient sets the HTTP client used for remote calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.preprocess == nil {
		o.preprocess = textprep.Default()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	return o
}

func (o options) processAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = o.preprocess(t)
	}
	return out
}

// New constructs the embedding adapter for the named provider.
//
//   - provider: "openai", "ollama", "gemini"
//   - cfg.Model: empty selects the provider's default model
//   - cfg.BaseURL: optional endpoint override (the host for Ollama)
func New(provider string, cfg Config, opts ...Option) (Embedding, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAI(OpenAIConfig(cfg), opts...), nil
	case ProviderOllama:
		return NewOllama(OllamaConfig{Host: cfg.BaseURL, Model: cfg.Model}, opts...), nil
	case ProviderGemini:
		return NewGemini(GeminiConfig(cfg), opts...), nil
	default:
		return nil, fmt.Errorf("%w %q; valid providers: openai, ollama, gemini", ErrUnknownProvider, provider)
	}
}

// SupportedModels returns the model table for the named provider.
func SupportedModels(provider string) (map[string]ModelSpec, error) {
	switch provider {
	case ProviderOpenAI:
		return OpenAISupportedModels(), nil
	case ProviderOllama:
		return OllamaSupportedModels(), nil
	case ProviderGemini:
		return GeminiSupportedModels(), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, provider)
	}
}

// Providers lists the provider names accepted by New.
func Providers() []string {
	return []string{ProviderOpenAI, ProviderOllama, ProviderGemini}
}

// ModelNames returns the keys of a model table in sorted order.
func ModelNames(models map[string]ModelSpec) []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyModels(src map[string]ModelSpec) map[string]ModelSpec {
	out := make(map[string]ModelSpec, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func resolveDimension(table map[string]ModelSpec, model string, fallback int) int {
	if spec, ok := table[model]; ok {
		return spec.Dimension
	}
	return fallback
}
