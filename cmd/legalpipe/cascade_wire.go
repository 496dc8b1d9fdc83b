package main

import (
	"fmt"
	"sync"

	"github.com/bbiangul/legalpipe/internal/cascade"
	"github.com/bbiangul/legalpipe/internal/llm"
	"github.com/bbiangul/legalpipe/internal/ratelimit"
)

// localRuntimeMu is the process-wide mutex serializing calls into any
// Local provider, shared by every cascade this process constructs (the
// local inference runtime is one resource regardless of how many stages
// or workers are running).
var localRuntimeMu sync.Mutex

// buildCascade constructs the model list from cfg.Models and wires it
// behind whichever of the two cascade strategies cfg.CascadeStrategy
// names.
func buildCascade(cfg Config) (*cascade.Cascade, error) {
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("legalpipe: no models configured for cascade")
	}

	models := make([]*cascade.Model, 0, len(cfg.Models))
	for _, mc := range cfg.Models {
		provider, err := llm.NewProvider(mc)
		if err != nil {
			return nil, fmt.Errorf("legalpipe: constructing provider %s/%s: %w", mc.Provider, mc.Model, err)
		}
		name := mc.Provider + "/" + mc.Model
		models = append(models, &cascade.Model{
			Name:     name,
			Tier:     mc.Tier,
			Provider: provider,
			Config:   mc,
		})
	}

	stats := cascade.NewStats()

	var strategy cascade.Strategy
	switch cfg.CascadeStrategy {
	case "", "rate_limit":
		strategy = cascade.NewStrategyA(models, ratelimit.New())
	case "error_driven":
		strategy = cascade.NewStrategyB(models)
	default:
		return nil, fmt.Errorf("legalpipe: unknown cascade strategy %q", cfg.CascadeStrategy)
	}

	return cascade.New(strategy, stats, &localRuntimeMu), nil
}

// buildEmbedder constructs the single LLM provider used for S5's
// embedding calls.
func buildEmbedder(cfg Config) (llm.Provider, error) {
	return llm.NewProvider(cfg.Embedder)
}
