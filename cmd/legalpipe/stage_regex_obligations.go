package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bbiangul/legalpipe/internal/extract"
	"github.com/bbiangul/legalpipe/internal/pipeline"
	"github.com/bbiangul/legalpipe/internal/types"
)

// regexObligationsStage implements pipeline.Stage for S4: regex
// deadline and dollar-amount obligation extraction, one section in,
// zero or more internal/types.Obligation out.
type regexObligationsStage struct{}

func (regexObligationsStage) NewRecord() any { return &types.Section{} }

func (regexObligationsStage) Process(_ context.Context, record any) (any, bool, error) {
	sec := record.(*types.Section)
	obligations := append(extract.ExtractDeadlines(*sec), extract.ExtractAmounts(*sec)...)
	if len(obligations) == 0 {
		return nil, true, nil
	}
	out := make(pipeline.Multi, len(obligations))
	for i, o := range obligations {
		out[i] = o
	}
	return out, false, nil
}

func newRegexObligationsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "regex-obligations",
		Short: "extract deadline and dollar-amount obligations by regex (S4)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(opts, "regex-obligations", "sections.ndjson", "obligations_regex.ndjson", regexObligationsStage{})
		},
	}
}
