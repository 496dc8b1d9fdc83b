package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bbiangul/legalpipe/internal/cascade"
	"github.com/bbiangul/legalpipe/internal/dedup"
	"github.com/bbiangul/legalpipe/internal/schema"
	"github.com/bbiangul/legalpipe/internal/types"
)

// anachronismStage implements pipeline.Stage for S10: sections S8
// already flagged with a reporting indicator get a further LLM pass
// checking for anachronistic references (obsolete agencies, superseded
// statutes, outdated technology/units).
type anachronismStage struct {
	cascade  *cascade.Cascade
	sch      *schema.Schema
	timeout  time.Duration
	now      func() time.Time
	sections map[string]string
}

func (anachronismStage) NewRecord() any { return &types.ReportingRecord{} }

func (s anachronismStage) Process(ctx context.Context, record any) (any, bool, error) {
	rr := record.(*types.ReportingRecord)
	if len(rr.Indicators) == 0 {
		return nil, true, nil
	}

	text := truncate(s.sections[rr.SectionID], dedup.TruncationLimits["reporting"])
	prompt := fmt.Sprintf(
		"This statutory text was flagged for a reporting obligation. Check it for "+
			"anachronisms: references to agencies, statutes, technologies, or units "+
			"that may be obsolete or superseded. Return a JSON object with "+
			"\"indicators\" (a list of objects with severity, complexity, "+
			"matched_phrases, and recommendation) and \"summary\". If nothing is "+
			"anachronistic, return an empty indicators list.\n\nText:\n%s", text)

	result, err := s.cascade.Generate(ctx, prompt, s.sch, s.timeout)
	if err != nil {
		return nil, false, err
	}

	indicators, summary := parseIndicators(result.Data)
	return types.AnachronismAnalysis{
		Jurisdiction: rr.Jurisdiction,
		SectionID:    rr.SectionID,
		Indicators:   indicators,
		Summary:      summary,
		ModelUsed:    result.ModelUsed,
		AnalyzedAt:   s.now(),
	}, false, nil
}

func newAnachronismCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "anachronism",
		Short: "check flagged sections for anachronistic references (S10)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfigFromOpts(opts)
			if err != nil {
				return err
			}
			sections, err := loadSectionTexts(dataPath(cfg, "sections.ndjson"))
			if err != nil {
				return err
			}
			cas, err := buildCascade(cfg)
			if err != nil {
				return err
			}
			sch, err := schema.Compile("anachronism", analysisSchemaSrc)
			if err != nil {
				return fmt.Errorf("legalpipe: compiling anachronism schema: %w", err)
			}
			stage := anachronismStage{cascade: cas, sch: sch, timeout: classificationTimeout(cfg), now: time.Now, sections: sections}
			if err := runStage(opts, "anachronism", "reporting.ndjson", "anachronisms.ndjson", stage); err != nil {
				return err
			}
			fmt.Print(cas.Stats().Snapshot().Summary())
			return nil
		},
	}
}
