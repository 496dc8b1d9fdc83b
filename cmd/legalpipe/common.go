package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bbiangul/legalpipe/internal/dedup"
	"github.com/bbiangul/legalpipe/internal/ndjson"
	"github.com/bbiangul/legalpipe/internal/pipeline"
)

// dataPath resolves name against cfg.DataDir, the single directory
// holding every stage's NDJSON files.
func dataPath(cfg Config, name string) string {
	return filepath.Join(cfg.DataDir, name)
}

// checkpointPath resolves the per-stage checkpoint file path, one file
// per stage name, owned 1:1 by that stage.
func checkpointPath(cfg Config, stage string) string {
	return filepath.Join(cfg.DataDir, "checkpoints", stage+".json")
}

// ensureCheckpointDir makes sure the checkpoints subdirectory exists
// before a Store tries to write into it.
func ensureCheckpointDir(cfg Config) error {
	return os.MkdirAll(filepath.Join(cfg.DataDir, "checkpoints"), 0o755)
}

// statFile is a thin os.Stat wrapper, used by the load stage to skip an
// optional input file that an upstream stage never produced.
func statFile(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// loadDedupMap loads the dedup stage's section-id -> canonical-id map so
// downstream LLM stages can skip non-canonical duplicates before paying
// for a call. An absent map file (dedup never ran) yields an empty map,
// so nothing is skipped.
func loadDedupMap(cfg Config) (map[string]string, error) {
	return dedup.LoadMap(dataPath(cfg, "dedup_map.bin"))
}

// runStage drives stage over inputName, writing qualifying output to
// outputName, under a fresh correlation id attached to every log line for
// this invocation. It prints the terminal counter summary on completion.
func runStage(cmd *RootOptions, stageName, inputName, outputName string, stage pipeline.Stage) error {
	cfg, err := resolveConfigFromOpts(cmd)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := slog.Default().With("stage", stageName, "run_id", runID, "jurisdiction", cfg.Jurisdiction)

	if err := ensureCheckpointDir(cfg); err != nil {
		return fmt.Errorf("legalpipe: preparing checkpoint directory: %w", err)
	}

	cpStore := ndjson.NewStore(checkpointPath(cfg, stageName))

	var writer *ndjson.Writer
	if outputName != "" {
		writer, err = ndjson.OpenWriter(dataPath(cfg, outputName))
		if err != nil {
			return fmt.Errorf("legalpipe: opening %s: %w", outputName, err)
		}
		defer writer.Close()
	}

	logger.Info("stage starting", "input", inputName, "output", outputName, "workers", cfg.Workers)

	runner := pipeline.NewRunner(cfg.Workers, logger)
	stats, err := runner.Run(context.Background(), dataPath(cfg, inputName), cpStore, writer, stage)

	fmt.Printf("%s: processed=%d written=%d skipped=%d errors=%d\n",
		stageName, stats.Processed, stats.Written, stats.Skipped, stats.Errors)

	return err
}

// resolveConfigFromOpts loads the YAML/env config and layers any
// explicitly-provided persistent flag onto it (flags win over env, which
// wins over the file). A flag left at its zero value never overrides the
// file/env-resolved setting.
func resolveConfigFromOpts(opts *RootOptions) (Config, error) {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.Jurisdiction != "" {
		cfg.Jurisdiction = opts.Jurisdiction
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	if opts.CascadeStrategy != "" {
		cfg.CascadeStrategy = opts.CascadeStrategy
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return cfg, nil
}
