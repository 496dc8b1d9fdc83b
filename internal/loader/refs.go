package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bbiangul/legalpipe/internal/types"
)

// RefsLoader loads cross-reference edges detected by stage S3.
type RefsLoader struct{}

func (RefsLoader) NewRecord() any { return &types.CrossReference{} }

func (RefsLoader) Validate(record any) error {
	r := record.(*types.CrossReference)
	if r.FromID == "" || r.ToID == "" {
		return errors.New("loader: cross reference missing from_id or to_id")
	}
	if r.FromID == r.ToID {
		return errors.New("loader: cross reference cannot self-reference")
	}
	return nil
}

func (RefsLoader) WriteBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, batch []any) (int, int, error) {
	before, err := countRows(ctx, tx, "section_refs")
	if err != nil {
		return 0, 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO section_refs (jurisdiction, from_id, to_id, raw_cite)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(jurisdiction, from_id, raw_cite) DO UPDATE SET
			to_id = excluded.to_id
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("loader: preparing section_refs upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		ref := r.(*types.CrossReference)
		jur := ref.Jurisdiction
		if jur == "" {
			jur = jurisdiction
		}
		if _, err := stmt.ExecContext(ctx, jur, ref.FromID, ref.ToID, ref.RawCite); err != nil {
			return 0, 0, fmt.Errorf("loader: upserting ref %s->%s: %w", ref.FromID, ref.ToID, err)
		}
	}

	after, err := countRows(ctx, tx, "section_refs")
	if err != nil {
		return 0, 0, err
	}
	inserted, updated := upsertCounts(before, after, len(batch))
	return inserted, updated, nil
}
