package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bbiangul/legalpipe/internal/extract"
	"github.com/bbiangul/legalpipe/internal/pipeline"
	"github.com/bbiangul/legalpipe/internal/types"
)

// refsStage implements pipeline.Stage for S3: regex cross-reference
// extraction, one section in, zero or more internal/types.CrossReference
// out.
type refsStage struct{}

func (refsStage) NewRecord() any { return &types.Section{} }

func (refsStage) Process(_ context.Context, record any) (any, bool, error) {
	sec := record.(*types.Section)
	refs := extract.ExtractReferences(*sec)
	if len(refs) == 0 {
		return nil, true, nil
	}
	out := make(pipeline.Multi, len(refs))
	for i, r := range refs {
		out[i] = r
	}
	return out, false, nil
}

func newRefsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refs",
		Short: "extract cross-references from sections (S3)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(opts, "refs", "sections.ndjson", "refs.ndjson", refsStage{})
		},
	}
}
