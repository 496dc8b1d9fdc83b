// Package pipeline runs one stage's read-process-write-checkpoint loop
// with an optional worker pool and two-signal graceful shutdown: the
// first signal flushes the checkpoint and exits cleanly, a second forces
// an immediate exit.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bbiangul/legalpipe/internal/ndjson"
)

// DefaultConcurrency keeps stages sequential by default; parallelism is
// opt-in per stage.
const DefaultConcurrency = 1

// Stage is implemented by one pipeline stage's per-record logic.
// NewRecord returns a fresh pointer for the reader to decode into;
// Process runs the stage's work and returns either an output record to
// write, or skip=true to record a processed-but-skipped outcome without
// writing anything (the S6/S7 pre-filter contract).
type Stage interface {
	NewRecord() any
	Process(ctx context.Context, record any) (output any, skip bool, err error)
}

// RecordID is implemented by Stage when it wants skipped records
// remembered by id across restarts (S6/S7's "processed — skipped"
// checkpoint entries); stages that don't need it simply don't
// implement it.
type RecordID interface {
	RecordID(record any) string
}

// Multi lets a Stage emit zero or more output records from a single
// input record (S3/S4's one-section-to-many-references-or-obligations
// shape) without abandoning the one-output-value Process signature:
// return Multi(records) instead of a single record.
type Multi []any

// Stats accumulates a stage run's terminal counters.
type Stats struct {
	Processed int
	Written   int
	Skipped   int
	Errors    int
}

// SignalError reports that a stage stopped early on an operator signal,
// after draining in-flight records and flushing its checkpoint.
type SignalError struct {
	Sig syscall.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("pipeline: interrupted by %v", e.Sig)
}

// ExitCode is 128+signal by convention.
func (e *SignalError) ExitCode() int {
	return 128 + int(e.Sig)
}

// Runner drives one Stage to completion over one NDJSON input.
type Runner struct {
	Concurrency int
	Logger      *slog.Logger
}

// NewRunner returns a Runner with Concurrency defaulted to 1.
func NewRunner(concurrency int, logger *slog.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Concurrency: concurrency, Logger: logger}
}

// Run streams inputPath through stage, writing qualifying output to
// writer and checkpointing progress to cpStore as it goes. The durable
// checkpoint offset only ever advances to the end of the last
// contiguously completed record, so a crash at any point replays only
// records whose outcome had not yet been recorded; records already
// skipped by id are not re-evaluated on resume. A first SIGINT/SIGTERM
// stops the loop from admitting new records, drains in-flight ones, and
// flushes the checkpoint before returning a *SignalError; a second
// forces immediate exit with code 128+signal.
func (r *Runner) Run(ctx context.Context, inputPath string, cpStore *ndjson.Store, writer *ndjson.Writer, stage Stage) (Stats, error) {
	cp, err := cpStore.Load()
	if err != nil {
		return Stats{}, fmt.Errorf("pipeline: loading checkpoint: %w", err)
	}

	// The reader gets its own checkpoint so that its read-ahead offset
	// (which runs past records still in flight) never leaks into the
	// durable one.
	readCP := &ndjson.Checkpoint{ByteOffset: cp.ByteOffset}
	reader, err := ndjson.OpenReader(inputPath, readCP)
	if err != nil {
		return Stats{}, fmt.Errorf("pipeline: opening %s: %w", inputPath, err)
	}
	defer reader.Close()
	cp.ByteOffset = readCP.ByteOffset // adopt a stale-offset reset

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		sem         = make(chan struct{}, r.Concurrency)
		stats       Stats
		firstErr    error
		interrupted syscall.Signal

		nextSeq      int
		retireSeq    int
		completedEnd = map[int]int64{}
	)

	shutdownRequested := make(chan struct{})
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		r.Logger.Warn("pipeline: shutdown requested, finishing in-flight records", "signal", sig)
		mu.Lock()
		if s, isSyscall := sig.(syscall.Signal); isSyscall {
			interrupted = s
		}
		mu.Unlock()
		close(shutdownRequested)
		cancel()

		sig2 := <-sigCh
		r.Logger.Error("pipeline: second signal received, exiting immediately", "signal", sig2)
		os.Exit(128 + signalNumber(sig2))
	}()

	// retireLocked records that the record read up to byte offset end has
	// reached its final outcome, and persists the checkpoint whenever the
	// contiguous completion frontier moves. Caller holds mu.
	retireLocked := func(seq int, end int64) {
		completedEnd[seq] = end
		advanced := false
		for {
			e, ok := completedEnd[retireSeq]
			if !ok {
				break
			}
			delete(completedEnd, retireSeq)
			cp.ByteOffset = e
			retireSeq++
			advanced = true
		}
		if advanced {
			if err := cpStore.Save(cp); err != nil {
				recordErrLocked(&firstErr, fmt.Errorf("pipeline: saving checkpoint: %w", err))
			}
		}
	}

readLoop:
	for {
		select {
		case <-shutdownRequested:
			break readLoop
		default:
		}

		record := stage.NewRecord()
		ok, err := reader.Next(record)
		if err != nil {
			mu.Lock()
			recordErrLocked(&firstErr, fmt.Errorf("pipeline: reading %s: %w", inputPath, err))
			mu.Unlock()
			break
		}
		if !ok {
			break
		}

		seq := nextSeq
		nextSeq++
		end := readCP.ByteOffset

		if ridStage, hasID := stage.(RecordID); hasID {
			mu.Lock()
			done := cp.IsProcessed(ridStage.RecordID(record))
			if done {
				retireLocked(seq, end)
			}
			mu.Unlock()
			if done {
				continue
			}
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(record any, seq int, end int64) {
			defer wg.Done()
			defer func() { <-sem }()

			output, skip, err := stage.Process(runCtx, record)

			mu.Lock()
			defer mu.Unlock()
			stats.Processed++
			switch {
			case err != nil:
				stats.Errors++
				r.Logger.Error("pipeline: record failed", "error", err)
			case skip:
				stats.Skipped++
				if ridStage, ok := stage.(RecordID); ok {
					cp.Skip(ridStage.RecordID(record))
				}
			default:
				if multi, ok := output.(Multi); ok {
					for _, one := range multi {
						if err := writer.Write(one); err != nil {
							stats.Errors++
							recordErrLocked(&firstErr, fmt.Errorf("pipeline: writing output: %w", err))
							return
						}
						stats.Written++
					}
				} else if output != nil {
					if err := writer.Write(output); err != nil {
						stats.Errors++
						recordErrLocked(&firstErr, fmt.Errorf("pipeline: writing output: %w", err))
						return
					}
					stats.Written++
				}
			}
			retireLocked(seq, end)
		}(record, seq, end)
	}

	wg.Wait()

	mu.Lock()
	cp.Incr("processed", stats.Processed)
	cp.Incr("skipped", stats.Skipped)
	cp.Incr("errors", stats.Errors)
	saveErr := cpStore.Save(cp)
	sig := interrupted
	mu.Unlock()
	if saveErr != nil {
		return stats, fmt.Errorf("pipeline: saving checkpoint: %w", saveErr)
	}

	r.Logger.Info("pipeline: stage complete",
		"processed", stats.Processed, "written", stats.Written,
		"skipped", stats.Skipped, "errors", stats.Errors)

	if firstErr == nil && sig != 0 {
		firstErr = &SignalError{Sig: sig}
	}
	return stats, firstErr
}

// recordErrLocked assumes the caller already holds the relevant mutex.
func recordErrLocked(dst *error, err error) {
	if *dst == nil {
		*dst = err
	}
}

func signalNumber(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return 0
}
