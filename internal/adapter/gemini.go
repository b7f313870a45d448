package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/memvra/embedkit/internal/logger"
)

const (
	DefaultGeminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel     = "text-embedding-004"
	DefaultGeminiDimension = 768

	geminiProviderName = "Gemini"
)

var geminiModels = map[string]ModelSpec{
	"text-embedding-004": {
		Dimension:   768,
		Description: "Text embedding model for retrieval and similarity",
	},
	"gemini-embedding-001": {
		Dimension:   3072,
		Description: "Gemini embedding model with the highest retrieval quality",
	},
}

// GeminiSupportedModels returns the known Gemini embedding models.
func GeminiSupportedModels() map[string]ModelSpec {
	return copyModels(geminiModels)
}

// GeminiConfig configures a Gemini adapter.
type GeminiConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// Gemini implements Embedding for Google Gemini via the REST API.
type Gemini struct {
	apiKey  string
	baseURL string
	opts    options

	mu        sync.RWMutex
	model     string
	dimension int
}

// NewGemini creates a Gemini adapter.
func NewGemini(cfg GeminiConfig, opts ...Option) *Gemini {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	a := &Gemini{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		opts:    buildOptions(opts),
	}
	a.SetModel(cfg.Model)
	return a
}

type geminiEmbedRequest struct {
	Model   string             `json:"model"`
	Content geminiEmbedContent `json:"content"`
}

type geminiEmbedContent struct {
	Parts []geminiEmbedPart `json:"parts"`
}

type geminiEmbedPart struct {
	Text string `json:"text"`
}

type geminiEmbedding struct {
	Values []float32 `json:"values"`
}

type geminiEmbedResponse struct {
	Embedding geminiEmbedding `json:"embedding"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiBatchResponse struct {
	Embeddings []geminiEmbedding `json:"embeddings"`
}

func (a *Gemini) snapshot() (string, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model, a.dimension
}

func (a *Gemini) Embed(ctx context.Context, text string) (Vector, error) {
	model, dim := a.snapshot()

	start := time.Now()
	var result geminiEmbedResponse
	err := a.post(ctx, model, "embedContent", newGeminiRequest(model, a.opts.preprocess(text)), &result)
	if err != nil {
		logger.Debug("gemini embed failed", "model", model, "error", err)
		return Vector{}, remoteErr(geminiProviderName, "embed", err)
	}
	logger.Debug("gemini embed", "model", model, "elapsed", time.Since(start))
	if len(result.Embedding.Values) == 0 {
		return Vector{}, remoteErr(geminiProviderName, "embed", errors.New("no embeddings returned"))
	}
	return Vector{Values: result.Embedding.Values, Dimension: dim}, nil
}

func (a *Gemini) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}
	model, dim := a.snapshot()

	batch := geminiBatchRequest{Requests: make([]geminiEmbedRequest, len(texts))}
	for i, t := range a.opts.processAll(texts) {
		batch.Requests[i] = newGeminiRequest(model, t)
	}

	start := time.Now()
	var result geminiBatchResponse
	if err := a.post(ctx, model, "batchEmbedContents", batch, &result); err != nil {
		logger.Debug("gemini embed batch failed", "model", model, "inputs", len(texts), "error", err)
		return nil, remoteErr(geminiProviderName, "embed batch", err)
	}
	logger.Debug("gemini embed batch", "model", model, "inputs", len(texts), "elapsed", time.Since(start))

	out := make([]Vector, len(result.Embeddings))
	for i, e := range result.Embeddings {
		out[i] = Vector{Values: e.Values, Dimension: dim}
	}
	return out, nil
}

func newGeminiRequest(model, text string) geminiEmbedRequest {
	return geminiEmbedRequest{
		Model:   "models/" + model,
		Content: geminiEmbedContent{Parts: []geminiEmbedPart{{Text: text}}},
	}
}

func (a *Gemini) post(ctx context.Context, model, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:%s?key=%s", a.baseURL, model, method, url.QueryEscape(a.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.opts.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func (a *Gemini) Dimension() int {
	_, dim := a.snapshot()
	return dim
}

func (a *Gemini) Provider() string { return geminiProviderName }

func (a *Gemini) Model() string {
	model, _ := a.snapshot()
	return model
}

func (a *Gemini) SetModel(model string) {
	if model == "" {
		model = DefaultGeminiModel
	}
	a.mu.Lock()
	a.model = model
	a.dimension = resolveDimension(geminiModels, model, DefaultGeminiDimension)
	a.mu.Unlock()
}
