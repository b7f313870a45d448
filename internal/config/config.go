// Package config manages the global (~/.config/embedkit/config.toml)
// configuration for embedkit.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/memvra/embedkit/internal/adapter"
)

// GlobalConfig holds user-wide settings.
type GlobalConfig struct {
	DefaultProvider string         `toml:"default_provider"`
	Keys            KeysConfig     `toml:"keys"`
	OpenAI          EndpointConfig `toml:"openai"`
	Ollama          OllamaConfig   `toml:"ollama"`
	Gemini          EndpointConfig `toml:"gemini"`
	Store           StoreConfig    `toml:"store"`
	Index           IndexConfig    `toml:"index"`
	Log             LogConfig      `toml:"log"`
}

type KeysConfig struct {
	OpenAI string `toml:"openai"`
	Gemini string `toml:"gemini"`
}

// EndpointConfig configures a hosted provider. BaseURL is optional.
type EndpointConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

type OllamaConfig struct {
	Host  string `toml:"host"`
	Model string `toml:"model"`
}

// StoreConfig locates the local vector store. An empty path selects
// DefaultStorePath.
type StoreConfig struct {
	Path string `toml:"path"`
}

// IndexConfig controls directory indexing.
type IndexConfig struct {
	ChunkMaxLines int `toml:"chunk_max_lines"`
	BatchSize     int `toml:"batch_size"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultGlobal returns sensible defaults.
func DefaultGlobal() GlobalConfig {
	return GlobalConfig{
		DefaultProvider: adapter.ProviderOpenAI,
		OpenAI: EndpointConfig{
			Model: adapter.DefaultOpenAIModel,
		},
		Ollama: OllamaConfig{
			Host:  adapter.DefaultOllamaHost,
			Model: adapter.DefaultOllamaModel,
		},
		Gemini: EndpointConfig{
			Model: adapter.DefaultGeminiModel,
		},
		Index: IndexConfig{
			ChunkMaxLines: 150,
			BatchSize:     32,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "embedkit", "config.toml"), nil
}

// DefaultStorePath returns the default location of the vector store.
func DefaultStorePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "embedkit", "embedkit.db")
}

// LoadGlobal loads the global config, applying defaults for any missing values.
func LoadGlobal() (GlobalConfig, error) {
	path, err := GlobalConfigPath()
	if err != nil {
		cfg := DefaultGlobal()
		applyEnv(&cfg)
		return cfg, nil // Defaults if we can't determine home dir.
	}
	return LoadFile(path)
}

// LoadFile loads config from path. A missing file yields the defaults.
// Environment variables override file values.
func LoadFile(path string) (GlobalConfig, error) {
	cfg := DefaultGlobal()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *GlobalConfig) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Keys.OpenAI = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Keys.Gemini = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv("EMBEDKIT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// SaveGlobal writes the global config to disk.
func SaveGlobal(cfg GlobalConfig) error {
	path, err := GlobalConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

// SaveFile writes cfg to path, creating parent directories. The file is
// created with 0600 permissions since it may hold API keys.
func SaveFile(path string, cfg GlobalConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// StorePath returns the configured store path or the default.
func (c GlobalConfig) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return DefaultStorePath()
}

// AdapterConfig builds the adapter settings for provider. An empty
// provider selects DefaultProvider.
func (c GlobalConfig) AdapterConfig(provider string) (string, adapter.Config) {
	if provider == "" {
		provider = c.DefaultProvider
	}
	switch provider {
	case adapter.ProviderOllama:
		return provider, adapter.Config{Model: c.Ollama.Model, BaseURL: c.Ollama.Host}
	case adapter.ProviderGemini:
		return provider, adapter.Config{Model: c.Gemini.Model, APIKey: c.Keys.Gemini, BaseURL: c.Gemini.BaseURL}
	default:
		return provider, adapter.Config{Model: c.OpenAI.Model, APIKey: c.Keys.OpenAI, BaseURL: c.OpenAI.BaseURL}
	}
}
