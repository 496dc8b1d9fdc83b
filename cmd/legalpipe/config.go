package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bbiangul/legalpipe/internal/llm"
)

// Config is the per-run configuration shared by every stage subcommand.
// A YAML file provides defaults, well-known environment variables
// override it, and explicit CLI flags win last.
type Config struct {
	DataDir         string      `yaml:"data_dir"`
	DBPath          string      `yaml:"db_path"`
	Jurisdiction    string      `yaml:"jurisdiction"`
	Workers         int         `yaml:"workers"`
	CascadeStrategy string      `yaml:"cascade_strategy"` // "rate_limit" | "error_driven"
	Models          []llm.Config `yaml:"models"`
	Embedder        llm.Config  `yaml:"embedder"`
}

// DefaultConfig returns sensible defaults for an all-local run against
// an ollama instance.
func DefaultConfig() Config {
	return Config{
		DataDir:         "./data",
		DBPath:          "./legalpipe.db",
		Jurisdiction:    "",
		Workers:         1,
		CascadeStrategy: "rate_limit",
		Models: []llm.Config{
			{Provider: "ollama", Model: "llama3.1:8b", BaseURL: "http://localhost:11434", Local: true},
		},
		Embedder: llm.Config{Provider: "ollama", Model: "nomic-embed-text", BaseURL: "http://localhost:11434", Local: true},
	}
}

// LoadConfig reads path (if non-empty) as a YAML Config over top of
// DefaultConfig, then applies LEGALPIPE_* environment overrides. CLI
// flags are applied by the caller afterward (flags always win).
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("legalpipe: reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("legalpipe: parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEGALPIPE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LEGALPIPE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LEGALPIPE_JURISDICTION"); v != "" {
		cfg.Jurisdiction = v
	}
	if v := os.Getenv("LEGALPIPE_CASCADE_STRATEGY"); v != "" {
		cfg.CascadeStrategy = v
	}
	for i := range cfg.Models {
		cfg.Models[i].APIKey = apiKeyFromEnv(cfg.Models[i].Provider, cfg.Models[i].APIKey)
	}
	cfg.Embedder.APIKey = apiKeyFromEnv(cfg.Embedder.Provider, cfg.Embedder.APIKey)
}

// apiKeyFromEnv falls back to the provider's well-known API key
// environment variable when the config doesn't already carry one.
func apiKeyFromEnv(provider, current string) string {
	if current != "" {
		return current
	}
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	case "xai":
		return os.Getenv("XAI_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "openrouter":
		return os.Getenv("OPENROUTER_API_KEY")
	default:
		return current
	}
}
