// Package config loads the langpipe.toml dev-server configuration and
// resolves per-vendor API keys from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Pipes     PipesConfig     `toml:"pipes"`
	Memory    MemoryConfig    `toml:"memory"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Observer  ObserverConfig  `toml:"observer"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PipesConfig struct {
	// Directory of pipe TOML files, loaded at startup.
	Dir string `toml:"dir"`
	// MaxCalls bounds the tool-calling loop per run. 0 = default.
	MaxCalls int `toml:"max_calls"`
}

type MemoryConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend string `toml:"backend"`
	// Path of the SQLite file (sqlite backend).
	Path string `toml:"path"`
	// URL of the PostgreSQL database (postgres backend).
	URL string `toml:"url"`
	// TopK chunks attached per run. 0 = default.
	TopK int `toml:"top_k"`
}

type EmbeddingConfig struct {
	// Provider is "openai" or "ollama".
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	BaseURL    string `toml:"base_url"`
}

type ObserverConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":9000"},
		Pipes:  PipesConfig{Dir: "pipes"},
		Memory: MemoryConfig{Backend: "sqlite", Path: "langpipe.db"},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "langpipe.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("LANGPIPE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LANGPIPE_PIPES_DIR"); v != "" {
		cfg.Pipes.Dir = v
	}
	if v := os.Getenv("LANGPIPE_MEMORY_URL"); v != "" {
		cfg.Memory.Backend = "postgres"
		cfg.Memory.URL = v
	}
	if os.Getenv("LANGPIPE_OBSERVER_ENABLED") == "true" || os.Getenv("LANGPIPE_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}

// llmKeyEnv maps vendor names to their conventional API key variables.
var llmKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"google":     "GOOGLE_API_KEY",
	"together":   "TOGETHER_API_KEY",
	"groq":       "GROQ_API_KEY",
	"xai":        "XAI_API_KEY",
	"fireworks":  "FIREWORKS_API_KEY",
	"perplexity": "PERPLEXITY_API_KEY",
	"cohere":     "COHERE_API_KEY",
}

// LLMKey resolves the API key for a vendor from the environment. Requests
// may carry their own key, which takes precedence over this lookup; ollama
// needs no key at all.
func LLMKey(vendor string) (string, error) {
	if vendor == "ollama" {
		return "", nil
	}
	envVar, ok := llmKeyEnv[vendor]
	if !ok {
		envVar = strings.ToUpper(vendor) + "_API_KEY"
	}
	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("no API key for %q: set %s or pass llmApiKey in the request", vendor, envVar)
	}
	return key, nil
}
