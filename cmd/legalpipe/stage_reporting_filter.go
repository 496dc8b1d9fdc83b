package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bbiangul/legalpipe/internal/filter"
	"github.com/bbiangul/legalpipe/internal/types"
)

// reportingFilterStage implements pipeline.Stage for S7: the
// cross-encoder-stand-in pre-filter, forwarding qualifying sections
// unchanged to reporting_candidates.ndjson for S8 to pick up.
// Non-canonical duplicates are dropped here, so none of the downstream
// reporting/anachronism/implementation passes ever sees one.
type reportingFilterStage struct {
	threshold float64
	dedupMap  map[string]string
}

func (reportingFilterStage) NewRecord() any { return &types.Section{} }

func (reportingFilterStage) RecordID(record any) string {
	return record.(*types.Section).ID
}

func (s reportingFilterStage) Process(_ context.Context, record any) (any, bool, error) {
	sec := record.(*types.Section)
	if _, dup := s.dedupMap[sec.ID]; dup {
		return nil, true, nil
	}
	if !filter.CrossEncoderPreFilter(sec.TextPlain, s.threshold) {
		return nil, true, nil
	}
	return sec, false, nil
}

func newReportingFilterCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reporting-filter",
		Short: "pre-filter sections likely to contain reporting obligations (S7)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfigFromOpts(opts)
			if err != nil {
				return err
			}
			dmap, err := loadDedupMap(cfg)
			if err != nil {
				return err
			}
			stage := reportingFilterStage{threshold: filter.DefaultCrossEncoderThreshold, dedupMap: dmap}
			return runStage(opts, "reporting-filter", "sections.ndjson", "reporting_candidates.ndjson", stage)
		},
	}
}
