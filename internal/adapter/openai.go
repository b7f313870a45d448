package adapter

import (
	"context"
	"errors"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/memvra/embedkit/internal/logger"
)

const (
	// DefaultOpenAIModel is used when OpenAIConfig.Model is empty.
	DefaultOpenAIModel = "text-embedding-3-small"
	// DefaultOpenAIDimension is assumed for models missing from the table.
	DefaultOpenAIDimension = 1536

	openaiProviderName = "OpenAI"
)

var openaiModels = map[string]ModelSpec{
	"text-embedding-3-small": {
		Dimension:   1536,
		Description: "High performance and cost-effective embedding model (recommended)",
	},
	"text-embedding-3-large": {
		Dimension:   3072,
		Description: "Highest performance embedding model with larger dimensions",
	},
	"text-embedding-ada-002": {
		Dimension:   1536,
		Description: "Legacy model (use text-embedding-3-small instead)",
	},
}

// OpenAISupportedModels returns the known OpenAI embedding models.
func OpenAISupportedModels() map[string]ModelSpec {
	return copyModels(openaiModels)
}

// OpenAIConfig configures an OpenAI adapter. BaseURL is optional and points
// the client at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// OpenAI implements Embedding using the OpenAI embeddings API.
type OpenAI struct {
	client *openai.Client
	opts   options

	mu        sync.RWMutex
	model     string
	dimension int
}

// NewOpenAI creates an OpenAI adapter. No network I/O happens here.
func NewOpenAI(cfg OpenAIConfig, opts ...Option) *OpenAI {
	o := buildOptions(opts)

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = o.httpClient

	a := &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		opts:   o,
	}
	a.SetModel(cfg.Model)
	return a
}

// snapshot returns the model and dimension a single call should use.
func (a *OpenAI) snapshot() (string, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model, a.dimension
}

func (a *OpenAI) Embed(ctx context.Context, text string) (Vector, error) {
	model, dim := a.snapshot()
	start := time.Now()

	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          a.opts.preprocess(text),
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		logger.Debug("openai embed failed", "model", model, "error", err)
		return Vector{}, remoteErr(openaiProviderName, "embed", err)
	}
	if len(resp.Data) == 0 {
		return Vector{}, remoteErr(openaiProviderName, "embed", errors.New("no embeddings returned"))
	}

	logger.Debug("openai embed", "model", model, "elapsed", time.Since(start))
	return Vector{Values: resp.Data[0].Embedding, Dimension: dim}, nil
}

func (a *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}
	model, dim := a.snapshot()
	start := time.Now()

	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:          a.opts.processAll(texts),
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		logger.Debug("openai embed batch failed", "model", model, "inputs", len(texts), "error", err)
		return nil, remoteErr(openaiProviderName, "embed batch", err)
	}

	// Response order is taken as-is.
	out := make([]Vector, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = Vector{Values: d.Embedding, Dimension: dim}
	}

	logger.Debug("openai embed batch", "model", model, "inputs", len(texts), "elapsed", time.Since(start))
	return out, nil
}

func (a *OpenAI) Dimension() int {
	_, dim := a.snapshot()
	return dim
}

func (a *OpenAI) Provider() string { return openaiProviderName }

// Model returns the configured model, after defaulting.
func (a *OpenAI) Model() string {
	model, _ := a.snapshot()
	return model
}

// SetModel switches the model and re-resolves the dimension from the model
// table. The model is not validated until the next remote call.
func (a *OpenAI) SetModel(model string) {
	if model == "" {
		model = DefaultOpenAIModel
	}
	a.mu.Lock()
	a.model = model
	a.dimension = resolveDimension(openaiModels, model, DefaultOpenAIDimension)
	a.mu.Unlock()
}

// UnsafeClient exposes the underlying go-openai client for calls outside the
// Embedding contract. Requests made through it bypass preprocessing and the
// adapter's model setting.
func (a *OpenAI) UnsafeClient() *openai.Client {
	return a.client
}
