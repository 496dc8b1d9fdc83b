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

const classificationSchemaSrc = `
kind!: "duplicate" | "superseded" | "related" | "conflicting"
explanation!: string
`

// classifyStage implements pipeline.Stage for S9: an LLM judgement over
// each similarity pair's relationship, given both sections' text.
type classifyStage struct {
	cascade  *cascade.Cascade
	sch      *schema.Schema
	timeout  time.Duration
	now      func() time.Time
	sections map[string]string
}

func (classifyStage) NewRecord() any { return &types.SimilarityPair{} }

func (s classifyStage) Process(ctx context.Context, record any) (any, bool, error) {
	pair := record.(*types.SimilarityPair)

	textA := truncate(s.sections[pair.SectionA], dedup.TruncationLimits["similarity"])
	textB := truncate(s.sections[pair.SectionB], dedup.TruncationLimits["similarity"])

	prompt := fmt.Sprintf(
		"Two statutory sections scored %.3f similar. Classify their relationship "+
			"as one of duplicate, superseded, related, or conflicting, and explain "+
			"briefly. Return a JSON object with \"kind\" and \"explanation\".\n\n"+
			"Section A (%s):\n%s\n\nSection B (%s):\n%s",
		pair.Similarity, pair.SectionA, textA, pair.SectionB, textB)

	result, err := s.cascade.Generate(ctx, prompt, s.sch, s.timeout)
	if err != nil {
		return nil, false, err
	}

	return types.Classification{
		Jurisdiction: pair.Jurisdiction,
		SectionA:     pair.SectionA,
		SectionB:     pair.SectionB,
		Kind:         asString(result.Data["kind"]),
		Explanation:  asString(result.Data["explanation"]),
		ModelUsed:    result.ModelUsed,
		AnalyzedAt:   s.now(),
	}, false, nil
}

func truncate(text string, limit int) string {
	if limit > 0 && len(text) > limit {
		return text[:limit]
	}
	return text
}

func newClassifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "classify similarity pairs as duplicate/superseded/related/conflicting (S9)",
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
			sch, err := schema.Compile("classification", classificationSchemaSrc)
			if err != nil {
				return fmt.Errorf("legalpipe: compiling classification schema: %w", err)
			}
			stage := classifyStage{cascade: cas, sch: sch, timeout: classificationTimeout(cfg), now: time.Now, sections: sections}
			if err := runStage(opts, "classify", "similarities.ndjson", "classifications.ndjson", stage); err != nil {
				return err
			}
			fmt.Print(cas.Stats().Snapshot().Summary())
			return nil
		},
	}
}
