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

// llmReportingStage implements pipeline.Stage for S8: structured LLM
// analysis of every S7-filtered candidate section for reporting
// obligations (who must report what, to whom, how often).
type llmReportingStage struct {
	cascade *cascade.Cascade
	sch     *schema.Schema
	timeout time.Duration
	now     func() time.Time
}

func (llmReportingStage) NewRecord() any { return &types.Section{} }

func (s llmReportingStage) Process(ctx context.Context, record any) (any, bool, error) {
	sec := record.(*types.Section)

	text := sec.TextPlain
	if limit := dedup.TruncationLimits["reporting"]; len(text) > limit {
		text = text[:limit]
	}
	prompt := fmt.Sprintf(
		"Identify any recurring reporting obligation in this statutory text: who "+
			"must report, to whom, how often, and under what penalty for "+
			"non-compliance. Return a JSON object with \"indicators\" (a list of "+
			"objects with severity, complexity, matched_phrases, and "+
			"recommendation) and \"summary\" (a short plain-English summary). "+
			"If there is no reporting obligation, return an empty indicators "+
			"list and a summary saying so.\n\nText:\n%s", text)

	result, err := s.cascade.Generate(ctx, prompt, s.sch, s.timeout)
	if err != nil {
		return nil, false, err
	}

	indicators, summary := parseIndicators(result.Data)
	return types.ReportingRecord{
		Jurisdiction: sec.Jurisdiction,
		SectionID:    sec.ID,
		Indicators:   indicators,
		Summary:      summary,
		ModelUsed:    result.ModelUsed,
		AnalyzedAt:   s.now(),
	}, false, nil
}

func newLLMReportingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "llm-reporting",
		Short: "analyze filtered candidates for reporting obligations (S8)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfigFromOpts(opts)
			if err != nil {
				return err
			}
			cas, err := buildCascade(cfg)
			if err != nil {
				return err
			}
			sch, err := schema.Compile("reporting", analysisSchemaSrc)
			if err != nil {
				return fmt.Errorf("legalpipe: compiling reporting schema: %w", err)
			}
			stage := llmReportingStage{cascade: cas, sch: sch, timeout: classificationTimeout(cfg), now: time.Now}
			if err := runStage(opts, "llm-reporting", "reporting_candidates.ndjson", "reporting.ndjson", stage); err != nil {
				return err
			}
			fmt.Print(cas.Stats().Snapshot().Summary())
			return nil
		},
	}
}
