// Command legalpipe runs the legal-code analysis pipeline's stages
// (S2-S12; S1 is an out-of-scope external collaborator represented by a
// documenting stub). Each stage is its own cobra subcommand reading an
// NDJSON input and writing an NDJSON output or relational rows, with its
// own checkpoint file so a crash mid-stage resumes without reprocessing
// or duplicating output.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bbiangul/legalpipe/internal/pipeline"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var sigErr *pipeline.SignalError
		if errors.As(err, &sigErr) {
			os.Exit(sigErr.ExitCode())
		}
		os.Exit(1)
	}
}
