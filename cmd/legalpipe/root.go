package main

import (
	"github.com/spf13/cobra"
)

// RootOptions holds the global flags shared by every stage subcommand.
type RootOptions struct {
	ConfigPath      string
	DataDir         string
	DBPath          string
	Jurisdiction    string
	Workers         int
	CascadeStrategy string
}

// NewRootCommand builds the legalpipe root command with one subcommand
// per pipeline stage.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "legalpipe",
		Short: "legalpipe - resumable legal-code analysis pipeline",
		Long: "legalpipe streams a legal-code corpus through a staged NDJSON " +
			"pipeline (dedup, regex extraction, embedding similarity, LLM " +
			"classification) and loads the results into a relational store.",
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.DataDir, "data-dir", "", "directory holding stage NDJSON files and checkpoints (overrides config)")
	flags.StringVar(&opts.DBPath, "db", "", "path to the SQLite database (overrides config)")
	flags.StringVar(&opts.Jurisdiction, "jurisdiction", "", "jurisdiction tag stamped onto records missing one (overrides config)")
	flags.IntVar(&opts.Workers, "workers", 0, "worker pool size for this stage, 0 keeps the config/default value")
	flags.StringVar(&opts.CascadeStrategy, "cascade-strategy", "", "rate_limit | error_driven (overrides config and LEGALPIPE_CASCADE_STRATEGY)")

	cmd.AddCommand(
		newParseCommand(opts),
		newDedupCommand(opts),
		newRefsCommand(opts),
		newRegexObligationsCommand(opts),
		newSimilarityCommand(opts),
		newLLMObligationsCommand(opts),
		newReportingFilterCommand(opts),
		newLLMReportingCommand(opts),
		newClassifyCommand(opts),
		newAnachronismCommand(opts),
		newImplementationCommand(opts),
		newLoadCommand(opts),
	)

	return cmd
}
