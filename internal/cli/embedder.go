package cli

import (
	"fmt"

	"github.com/memvra/embedkit/internal/adapter"
	"github.com/memvra/embedkit/internal/config"
	"github.com/memvra/embedkit/internal/logger"
	"github.com/memvra/embedkit/internal/store"
)

// embedder is what the commands need from an adapter.
type embedder interface {
	adapter.Embedding
	adapter.ModelSetter
}

// buildEmbedder creates the adapter selected by name (or the configured
// default), overriding the configured model when modelName is set.
func buildEmbedder(cfg config.GlobalConfig, name, modelName string) (embedder, error) {
	name, acfg := cfg.AdapterConfig(name)
	if modelName != "" {
		acfg.Model = modelName
	}

	emb, err := adapter.New(name, acfg)
	if err != nil {
		return nil, err
	}
	e, ok := emb.(embedder)
	if !ok {
		return nil, fmt.Errorf("provider %q does not support model selection", name)
	}

	logger.Debug("embedder ready", "provider", e.Provider(), "model", e.Model(), "dimension", e.Dimension())
	return e, nil
}

// openStore opens the configured store pinned to the embedder's model and
// dimension.
func openStore(cfg config.GlobalConfig, emb embedder) (*store.Store, error) {
	path := cfg.StorePath()
	s, err := store.Open(path, store.Meta{
		Provider:  emb.Provider(),
		Model:     emb.Model(),
		Dimension: emb.Dimension(),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return s, nil
}

// commandEnv loads config and builds the embedder from persistent flags.
func commandEnv() (config.GlobalConfig, embedder, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, err
	}
	emb, err := buildEmbedder(cfg, provider, model)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, emb, nil
}
