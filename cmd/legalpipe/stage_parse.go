package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newParseCommand documents stage S1's external contract rather than
// implementing it: parsing a jurisdiction's legal-code XML into
// sections.ndjson/structure.ndjson is out of scope for this module (it
// belongs to a separate ingestion tool per jurisdiction's source
// format). The subcommand exists so `legalpipe parse --help` tells an
// operator what the rest of the pipeline expects instead of silently
// omitting S1 from the command tree.
func newParseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "document the sections.ndjson / structure.ndjson contract (not implemented here)",
		Long: "legalpipe expects an external collaborator to produce sections.ndjson " +
			"(one internal/types.Section per line) and structure.ndjson (one " +
			"internal/types.StructureNode per line) in --data-dir before any other " +
			"stage runs. Parsing jurisdiction-specific legal-code XML into that shape " +
			"is out of scope for this binary; every downstream stage (dedup onward) " +
			"reads those two files as its starting point.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("legalpipe: parse is a documentation stub; " +
				"produce sections.ndjson and structure.ndjson externally")
		},
	}
}
