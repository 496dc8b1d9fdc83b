package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bbiangul/legalpipe/internal/cascade"
	"github.com/bbiangul/legalpipe/internal/dedup"
	"github.com/bbiangul/legalpipe/internal/filter"
	"github.com/bbiangul/legalpipe/internal/pipeline"
	"github.com/bbiangul/legalpipe/internal/schema"
	"github.com/bbiangul/legalpipe/internal/types"
)

const obligationSchemaSrc = `obligations!: [...]`

// llmObligationsStage implements pipeline.Stage for S6: non-canonical
// duplicates and regex-pre-filter misses are skipped before any section
// reaches an LLM call, and the LLM response is salvage-parsed/validated
// against a single-list-field schema (internal/schema's Repair path)
// before being split into individual internal/types.Obligation records.
type llmObligationsStage struct {
	cascade  *cascade.Cascade
	sch      *schema.Schema
	timeout  time.Duration
	dedupMap map[string]string
}

func (llmObligationsStage) NewRecord() any { return &types.Section{} }

func (s llmObligationsStage) RecordID(record any) string {
	return record.(*types.Section).ID
}

func (s llmObligationsStage) Process(ctx context.Context, record any) (any, bool, error) {
	sec := record.(*types.Section)

	if _, dup := s.dedupMap[sec.ID]; dup {
		return nil, true, nil
	}
	if !filter.RegexPreFilter(sec.TextPlain) {
		return nil, true, nil
	}

	text := sec.TextPlain
	if limit := dedup.TruncationLimits["obligations"]; len(text) > limit {
		text = text[:limit]
	}
	prompt := fmt.Sprintf(
		"Identify every deadline, constraint, budgetary allocation, and penalty "+
			"obligation stated in this statutory text. Return a JSON object with "+
			"one field \"obligations\", a list of objects each having "+
			"category (one of deadline, constraint, allocation, penalty), "+
			"phrase (the 5-200 character quoted phrase), and optionally "+
			"value, unit, and confidence (0-1).\n\nText:\n%s", text)

	result, err := s.cascade.Generate(ctx, prompt, s.sch, s.timeout)
	if err != nil {
		return nil, false, err
	}

	rawList, _ := result.Data["obligations"].([]any)
	var out pipeline.Multi
	for _, item := range rawList {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		phrase := asString(obj["phrase"])
		if len(phrase) < 5 || len(phrase) > 200 {
			continue
		}
		ob := types.Obligation{
			Jurisdiction: sec.Jurisdiction,
			SectionID:    sec.ID,
			Category:     asString(obj["category"]),
			Phrase:       phrase,
		}
		if v, ok := obj["value"].(float64); ok {
			ob.Value = &v
		}
		if u, ok := obj["unit"].(string); ok {
			ob.Unit = &u
		}
		if c, ok := obj["confidence"].(float64); ok {
			ob.Confidence = &c
		}
		out = append(out, ob)
	}
	if len(out) == 0 {
		return nil, true, nil
	}
	return out, false, nil
}

func newLLMObligationsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "llm-obligations",
		Short: "LLM-confirm regex-flagged obligations (S6)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfigFromOpts(opts)
			if err != nil {
				return err
			}
			cas, err := buildCascade(cfg)
			if err != nil {
				return err
			}
			sch, err := schema.Compile("obligations", obligationSchemaSrc)
			if err != nil {
				return fmt.Errorf("legalpipe: compiling obligations schema: %w", err)
			}
			dmap, err := loadDedupMap(cfg)
			if err != nil {
				return err
			}
			stage := llmObligationsStage{cascade: cas, sch: sch, timeout: classificationTimeout(cfg), dedupMap: dmap}
			if err := runStage(opts, "llm-obligations", "sections.ndjson", "obligations.ndjson", stage); err != nil {
				return err
			}
			fmt.Print(cas.Stats().Snapshot().Summary())
			return nil
		},
	}
}
