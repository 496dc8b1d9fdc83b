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

// implementationStage implements pipeline.Stage for S11: a further LLM
// pass over S8-flagged sections assessing implementation burden (what
// an agency would need to build or staff to comply).
type implementationStage struct {
	cascade  *cascade.Cascade
	sch      *schema.Schema
	timeout  time.Duration
	now      func() time.Time
	sections map[string]string
}

func (implementationStage) NewRecord() any { return &types.ReportingRecord{} }

func (s implementationStage) Process(ctx context.Context, record any) (any, bool, error) {
	rr := record.(*types.ReportingRecord)
	if len(rr.Indicators) == 0 {
		return nil, true, nil
	}

	text := truncate(s.sections[rr.SectionID], dedup.TruncationLimits["reporting"])
	prompt := fmt.Sprintf(
		"This statutory text was flagged for a reporting obligation. Assess the "+
			"practical implementation burden: new systems, staffing, or process "+
			"changes an agency would need. Return a JSON object with "+
			"\"indicators\" (a list of objects with severity, complexity, "+
			"matched_phrases, and recommendation) and \"summary\".\n\nText:\n%s", text)

	result, err := s.cascade.Generate(ctx, prompt, s.sch, s.timeout)
	if err != nil {
		return nil, false, err
	}

	indicators, summary := parseIndicators(result.Data)
	return types.ImplementationAnalysis{
		Jurisdiction: rr.Jurisdiction,
		SectionID:    rr.SectionID,
		Indicators:   indicators,
		Summary:      summary,
		ModelUsed:    result.ModelUsed,
		AnalyzedAt:   s.now(),
	}, false, nil
}

func newImplementationCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "implementation",
		Short: "assess implementation burden of flagged sections (S11)",
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
			sch, err := schema.Compile("implementation", analysisSchemaSrc)
			if err != nil {
				return fmt.Errorf("legalpipe: compiling implementation schema: %w", err)
			}
			stage := implementationStage{cascade: cas, sch: sch, timeout: classificationTimeout(cfg), now: time.Now, sections: sections}
			if err := runStage(opts, "implementation", "reporting.ndjson", "implementation.ndjson", stage); err != nil {
				return err
			}
			fmt.Print(cas.Stats().Snapshot().Summary())
			return nil
		},
	}
}
