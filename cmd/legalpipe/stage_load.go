package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bbiangul/legalpipe/internal/loader"
	"github.com/bbiangul/legalpipe/internal/ndjson"
)

// loadTarget pairs one NDJSON input with the Loader that ingests it and
// the checkpoint name it resumes under.
type loadTarget struct {
	name string
	file string
	ld   loader.Loader
}

// loadOrder is the FK-dependency load order: structure before sections
// before refs before obligations before similarities before classifications before
// reporting before anachronisms before implementation. Obligations has
// two upstream producers (S4's regex pass and S6's LLM pass); both are
// loaded into the same table, regex first.
func loadOrder() []loadTarget {
	return []loadTarget{
		{"structure", "structure.ndjson", loader.StructureLoader{}},
		{"sections", "sections.ndjson", loader.SectionsLoader{}},
		{"refs", "refs.ndjson", loader.RefsLoader{}},
		{"obligations-regex", "obligations_regex.ndjson", loader.ObligationsLoader{}},
		{"obligations-llm", "obligations.ndjson", loader.ObligationsLoader{}},
		{"similarities", "similarities.ndjson", loader.SimilarityLoader{}},
		{"classifications", "classifications.ndjson", loader.ClassificationLoader{}},
		{"reporting", "reporting.ndjson", loader.ReportingLoader{}},
		{"anachronisms", "anachronisms.ndjson", loader.AnachronismLoader{}},
		{"implementation", "implementation.ndjson", loader.ImplementationLoader{}},
	}
}

func newLoadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "bulk-load every staged NDJSON output into the relational store (S12)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfigFromOpts(opts)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			logger := slog.Default().With("stage", "load", "run_id", runID, "jurisdiction", cfg.Jurisdiction)

			db, err := loader.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := ensureCheckpointDir(cfg); err != nil {
				return fmt.Errorf("legalpipe: preparing checkpoint directory: %w", err)
			}

			var totals loader.Stats
			for _, t := range loadOrder() {
				inputPath := dataPath(cfg, t.file)
				if _, statErr := statFile(inputPath); statErr != nil {
					logger.Warn("load: skipping missing input", "target", t.name, "file", t.file)
					continue
				}

				cpStore := ndjson.NewStore(checkpointPath(cfg, "load-"+t.name))
				driver := loader.NewDriver(db, cpStore, logger.With("target", t.name))

				logger.Info("load: target starting", "target", t.name, "file", t.file)
				stats, err := driver.Run(context.Background(), inputPath, cfg.Jurisdiction, t.ld)
				if err != nil {
					return fmt.Errorf("legalpipe: loading %s: %w", t.name, err)
				}
				totals.Inserted += stats.Inserted
				totals.Updated += stats.Updated
				totals.Errors += stats.Errors
				totals.Skipped += stats.Skipped
			}

			fmt.Printf("load: inserted=%d updated=%d errors=%d skipped=%d\n",
				totals.Inserted, totals.Updated, totals.Errors, totals.Skipped)
			return nil
		},
	}
}
