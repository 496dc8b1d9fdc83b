package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bbiangul/legalpipe/internal/ann"
	"github.com/bbiangul/legalpipe/internal/ndjson"
	"github.com/bbiangul/legalpipe/internal/types"
)

// newSimilarityCommand wires stage S5. Like dedup, semantic similarity
// needs every section embedded and indexed before any pair can be
// emitted, so it runs as one batch job rather than pipeline.Runner's
// streaming per-record loop: the index is rebuilt from the embedding
// cache on every run (no incremental index persistence), so
// similarities.ndjson is truncated and rewritten in full each time.
func newSimilarityCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "similarity",
		Short: "compute semantic similarity pairs from section embeddings (S5)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfigFromOpts(opts)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			logger := slog.Default().With("stage", "similarity", "run_id", runID, "jurisdiction", cfg.Jurisdiction)

			sections, err := loadANNSections(dataPath(cfg, "sections.ndjson"))
			if err != nil {
				return err
			}
			logger.Info("similarity starting", "sections", len(sections))

			embedder, err := buildEmbedder(cfg)
			if err != nil {
				return err
			}

			acfg := ann.DefaultConfig()
			cache, err := ann.OpenCache(dataPath(cfg, "embedding_cache.bin"), acfg.CacheFlushEvery)
			if err != nil {
				return fmt.Errorf("legalpipe: opening embedding cache: %w", err)
			}

			pairs, err := ann.ComputeSimilarities(context.Background(), sections, embedder, cache, acfg, logger)
			if err != nil {
				return err
			}

			if err := writeSimilarityPairs(dataPath(cfg, "similarities.ndjson"), pairs); err != nil {
				return err
			}

			fmt.Printf("similarity: sections=%d pairs=%d\n", len(sections), len(pairs))
			return nil
		},
	}
}

func loadANNSections(path string) ([]ann.Section, error) {
	reader, err := ndjson.OpenReader(path, ndjson.NewCheckpoint())
	if err != nil {
		return nil, fmt.Errorf("legalpipe: opening sections: %w", err)
	}
	defer reader.Close()

	var sections []ann.Section
	for {
		var sec types.Section
		ok, err := reader.Next(&sec)
		if err != nil {
			return nil, fmt.Errorf("legalpipe: reading sections: %w", err)
		}
		if !ok {
			break
		}
		sections = append(sections, ann.Section{ID: sec.ID, Jurisdiction: sec.Jurisdiction, Text: sec.TextPlain})
	}
	return sections, nil
}

// writeSimilarityPairs truncates path and writes pairs, one JSON object
// per line, rather than appending — S5 has no incremental persistence,
// so every run's output fully replaces the last.
func writeSimilarityPairs(path string, pairs []types.SimilarityPair) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("legalpipe: opening %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for _, p := range pairs {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("legalpipe: writing similarity pair: %w", err)
		}
	}
	return nil
}
