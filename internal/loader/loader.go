// Package loader implements the bulk NDJSON-to-SQL loading stage: a
// generic batch/transaction/backoff driver plus one concrete Loader per
// domain table, with byte-offset resume and upsert-on-natural-key
// semantics.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/bbiangul/legalpipe/internal/ndjson"
)

// BatchSize is the default number of validated records accumulated
// before a batch is written in one transaction.
const BatchSize = 500

// backoffDelays is the fixed retry schedule for transient DB errors: 1s,
// 2s, 4s (three retries after the first attempt, four attempts in all).
var backoffDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Stats accumulates the driver's running counters.
type Stats struct {
	Inserted int
	Updated  int
	Errors   int
	Skipped  int
}

// Loader is implemented once per domain table (or small table group).
// NewRecord returns a fresh pointer for ndjson.Reader.Next to decode
// into; Validate rejects malformed records before they enter a batch;
// WriteBatch upserts a whole batch inside the caller's transaction and
// reports how many rows were inserted vs. updated.
type Loader interface {
	NewRecord() any
	Validate(record any) error
	WriteBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, batch []any) (inserted, updated int, err error)
}

// Driver runs one Loader's checkpointed batch pipeline against an open
// database.
type Driver struct {
	DB           *sql.DB
	CheckpointStore *ndjson.Store
	BatchSize    int
	Logger       *slog.Logger
}

// NewDriver returns a Driver with BatchSize defaulted.
func NewDriver(db *sql.DB, cpStore *ndjson.Store, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{DB: db, CheckpointStore: cpStore, BatchSize: BatchSize, Logger: logger}
}

// Run streams inputPath through loader, resuming from the checkpoint
// store's last byte offset, and returns final Stats. jurisdiction is
// stamped onto any record missing one.
func (d *Driver) Run(ctx context.Context, inputPath, jurisdiction string, ld Loader) (Stats, error) {
	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = BatchSize
	}

	cp, err := d.CheckpointStore.Load()
	if err != nil {
		return Stats{}, fmt.Errorf("loader: loading checkpoint: %w", err)
	}
	cp.Jurisdiction = jurisdiction

	reader, err := ndjson.OpenReader(inputPath, cp)
	if err != nil {
		return Stats{}, fmt.Errorf("loader: opening %s: %w", inputPath, err)
	}
	defer reader.Close()

	var stats Stats
	var batch []any

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := d.writeBatchWithRetry(ctx, jurisdiction, ld, batch, &stats); err != nil {
			if !isIntegrity(err) {
				return err
			}
			// A constraint violation won't fix itself on replay: count
			// the batch as errored and move on to the next one.
			stats.Errors++
			d.Logger.Error("loader: batch violated a database constraint, skipping batch", "error", err)
		}
		batch = batch[:0]
		if err := d.CheckpointStore.Save(cp); err != nil {
			return fmt.Errorf("loader: saving checkpoint: %w", err)
		}
		return nil
	}

	for {
		record := ld.NewRecord()
		ok, err := reader.Next(record)
		if err != nil {
			return stats, fmt.Errorf("loader: reading %s: %w", inputPath, err)
		}
		if !ok {
			break
		}

		if err := ld.Validate(record); err != nil {
			stats.Skipped++
			d.Logger.Warn("loader: skipping invalid record", "error", err)
			continue
		}

		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	cp.Counters = map[string]int{
		"inserted": stats.Inserted,
		"updated":  stats.Updated,
		"errors":   stats.Errors,
		"skipped":  stats.Skipped,
	}
	if err := d.CheckpointStore.Save(cp); err != nil {
		return stats, fmt.Errorf("loader: saving final checkpoint: %w", err)
	}

	d.Logger.Info("loader: load complete",
		"inserted", stats.Inserted, "updated", stats.Updated,
		"errors", stats.Errors, "skipped", stats.Skipped)
	return stats, nil
}

// writeBatchWithRetry runs one batch inside a transaction, retrying on
// transient SQLite errors (SQLITE_BUSY/SQLITE_LOCKED) with the fixed
// backoff schedule. A non-transient error rolls back and is returned
// immediately, leaving the checkpoint at its pre-batch offset so the
// next run replays the batch.
func (d *Driver) writeBatchWithRetry(ctx context.Context, jurisdiction string, ld Loader, batch []any, stats *Stats) error {
	var lastErr error
	for attempt := 0; attempt <= len(backoffDelays); attempt++ {
		err := d.writeBatchOnce(ctx, jurisdiction, ld, batch, stats)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			return err
		}
		if attempt < len(backoffDelays) {
			d.Logger.Warn("loader: transient database error, retrying",
				"attempt", attempt+1, "delay", backoffDelays[attempt], "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelays[attempt]):
			}
		}
	}
	return fmt.Errorf("loader: batch failed after retries: %w", lastErr)
}

func (d *Driver) writeBatchOnce(ctx context.Context, jurisdiction string, ld Loader, batch []any, stats *Stats) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	inserted, updated, err := ld.WriteBatch(ctx, tx, jurisdiction, batch)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	stats.Inserted += inserted
	stats.Updated += updated
	return nil
}

// isTransient reports whether err is a retryable SQLite condition
// (database locked/busy), as opposed to a constraint violation or
// structural error that retrying cannot fix.
func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// isIntegrity reports whether err is a constraint violation (foreign
// key, unique, check). These are data defects, not infrastructure
// failures, so the driver skips the offending batch rather than abort
// the whole load.
func isIntegrity(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// countRows returns the current row count of table, used to split an
// upsert batch's effect into inserted vs. updated counts from a
// before/after snapshot. Each table has exactly one writer (its loader
// stage), so no concurrent writer can skew the snapshot between the two
// counts.
func countRows(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	var n int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("loader: counting rows in %s: %w", table, err)
	}
	return n, nil
}

// upsertCounts derives (inserted, updated) for a batch of size total
// given row counts observed before and after the upsert ran.
func upsertCounts(before, after, total int) (inserted, updated int) {
	inserted = after - before
	if inserted < 0 {
		inserted = 0
	}
	if inserted > total {
		inserted = total
	}
	updated = total - inserted
	return inserted, updated
}
