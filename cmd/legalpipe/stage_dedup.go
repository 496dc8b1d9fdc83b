package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bbiangul/legalpipe/internal/dedup"
	"github.com/bbiangul/legalpipe/internal/ndjson"
	"github.com/bbiangul/legalpipe/internal/types"
)

// newDedupCommand wires stage S2. Unlike the other stages, MinHash/LSH
// near-duplicate detection needs every section in hand before it can
// run at all, so it does not fit pipeline.Stage's per-record contract —
// this command reads sections.ndjson in full, runs dedup.Detect once
// per truncation limit, merges the results, and writes the merged map
// and its stats straight through rather than via pipeline.Runner.
func newDedupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dedup",
		Short: "detect near-duplicate sections with MinHash/LSH (S2)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfigFromOpts(opts)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			logger := slog.Default().With("stage", "dedup", "run_id", runID, "jurisdiction", cfg.Jurisdiction)

			sections, err := loadSectionTexts(dataPath(cfg, "sections.ndjson"))
			if err != nil {
				return err
			}
			logger.Info("dedup starting", "sections", len(sections))

			dcfg := dedup.DefaultConfig()
			byLimit := make(map[string]map[string]string, len(dedup.TruncationLimits))
			for name, limit := range dedup.TruncationLimits {
				m := dedup.Detect(sections, limit, dcfg)
				byLimit[name] = m
				logger.Info("dedup: truncation limit complete", "limit_name", name, "limit_chars", limit, "duplicates", len(m))
			}

			merged := dedup.MergeMaps(byLimit, dedup.TruncationLimits)
			stats := dedup.ComputeStats(len(sections), merged, byLimit)

			if err := dedup.SaveMap(dataPath(cfg, "dedup_map.bin"), merged); err != nil {
				return err
			}
			if err := dedup.SaveStats(dataPath(cfg, "dedup_stats.json"), stats); err != nil {
				return err
			}

			fmt.Printf("dedup: sections=%d duplicates=%d groups=%d unique=%d\n",
				stats.TotalSections, stats.DuplicateSections, stats.DuplicateGroups, stats.UniqueCanonicalSections)
			logger.Info("dedup complete",
				"duplicates", stats.DuplicateSections, "groups", stats.DuplicateGroups)
			return nil
		},
	}
}

// loadSectionTexts reads every Section from path into an id -> text_plain
// map, the shape dedup.Detect expects.
func loadSectionTexts(path string) (map[string]string, error) {
	reader, err := ndjson.OpenReader(path, ndjson.NewCheckpoint())
	if err != nil {
		return nil, fmt.Errorf("legalpipe: opening sections: %w", err)
	}
	defer reader.Close()

	sections := map[string]string{}
	for {
		var sec types.Section
		ok, err := reader.Next(&sec)
		if err != nil {
			return nil, fmt.Errorf("legalpipe: reading sections: %w", err)
		}
		if !ok {
			break
		}
		sections[sec.ID] = sec.TextPlain
	}
	return sections, nil
}
