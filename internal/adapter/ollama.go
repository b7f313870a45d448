package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/memvra/embedkit/internal/logger"
)

const (
	DefaultOllamaHost      = "http://localhost:11434"
	DefaultOllamaModel     = "nomic-embed-text"
	DefaultOllamaDimension = 768

	ollamaProviderName = "Ollama"
)

var ollamaModels = map[string]ModelSpec{
	"nomic-embed-text": {
		Dimension:   768,
		Description: "General purpose local embedding model with a large context window",
	},
	"mxbai-embed-large": {
		Dimension:   1024,
		Description: "Large local embedding model from mixedbread.ai",
	},
	"all-minilm": {
		Dimension:   384,
		Description: "Small and fast sentence-transformers model",
	},
}

// OllamaSupportedModels returns the known Ollama embedding models.
func OllamaSupportedModels() map[string]ModelSpec {
	return copyModels(ollamaModels)
}

// OllamaConfig configures an Ollama adapter.
type OllamaConfig struct {
	Host  string
	Model string
}

// Ollama implements Embedding for a local Ollama instance.
type Ollama struct {
	host string
	opts options

	mu        sync.RWMutex
	model     string
	dimension int
}

// NewOllama creates an Ollama adapter.
func NewOllama(cfg OllamaConfig, opts ...Option) *Ollama {
	host := cfg.Host
	if host == "" {
		host = DefaultOllamaHost
	}
	a := &Ollama{
		host: strings.TrimRight(host, "/"),
		opts: buildOptions(opts),
	}
	a.SetModel(cfg.Model)
	return a
}

// ollamaEmbedRequest is the request body for the Ollama embed API.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the response from the Ollama embed API.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (a *Ollama) snapshot() (string, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model, a.dimension
}

func (a *Ollama) Embed(ctx context.Context, text string) (Vector, error) {
	model, dim := a.snapshot()
	start := time.Now()
	embs, err := a.call(ctx, model, []string{a.opts.preprocess(text)})
	if err != nil {
		logger.Debug("ollama embed failed", "model", model, "error", err)
		return Vector{}, remoteErr(ollamaProviderName, "embed", err)
	}
	logger.Debug("ollama embed", "model", model, "elapsed", time.Since(start))
	if len(embs) == 0 {
		return Vector{}, remoteErr(ollamaProviderName, "embed", errors.New("no embeddings returned"))
	}
	return Vector{Values: embs[0], Dimension: dim}, nil
}

func (a *Ollama) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}
	model, dim := a.snapshot()
	start := time.Now()
	embs, err := a.call(ctx, model, a.opts.processAll(texts))
	if err != nil {
		logger.Debug("ollama embed batch failed", "model", model, "inputs", len(texts), "error", err)
		return nil, remoteErr(ollamaProviderName, "embed batch", err)
	}
	logger.Debug("ollama embed batch", "model", model, "inputs", len(texts), "elapsed", time.Since(start))
	out := make([]Vector, len(embs))
	for i, e := range embs {
		out[i] = Vector{Values: e, Dimension: dim}
	}
	return out, nil
}

func (a *Ollama) call(ctx context.Context, model string, input []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.opts.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return result.Embeddings, nil
}

func (a *Ollama) Dimension() int {
	_, dim := a.snapshot()
	return dim
}

func (a *Ollama) Provider() string { return ollamaProviderName }

func (a *Ollama) Model() string {
	model, _ := a.snapshot()
	return model
}

func (a *Ollama) SetModel(model string) {
	if model == "" {
		model = DefaultOllamaModel
	}
	a.mu.Lock()
	a.model = model
	a.dimension = resolveDimension(ollamaModels, model, DefaultOllamaDimension)
	a.mu.Unlock()
}
