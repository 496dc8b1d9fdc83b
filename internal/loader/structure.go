package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bbiangul/legalpipe/internal/types"
)

// StructureLoader loads the per-jurisdiction structure forest (titles,
// chapters, articles).
type StructureLoader struct{}

func (StructureLoader) NewRecord() any { return &types.StructureNode{} }

func (StructureLoader) Validate(record any) error {
	n := record.(*types.StructureNode)
	if n.ID == "" {
		return errors.New("loader: structure node missing id")
	}
	if n.Label == "" {
		return errors.New("loader: structure node missing label")
	}
	return nil
}

func (StructureLoader) WriteBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, batch []any) (int, int, error) {
	before, err := countRows(ctx, tx, "structure")
	if err != nil {
		return 0, 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO structure (jurisdiction, id, parent_id, level, label, heading, ordinal)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jurisdiction, id) DO UPDATE SET
			parent_id = excluded.parent_id,
			level = excluded.level,
			label = excluded.label,
			heading = excluded.heading,
			ordinal = excluded.ordinal
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("loader: preparing structure upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		n := r.(*types.StructureNode)
		jur := n.Jurisdiction
		if jur == "" {
			jur = jurisdiction
		}
		var parentID any
		if n.ParentID != "" {
			parentID = n.ParentID
		}
		if _, err := stmt.ExecContext(ctx, jur, n.ID, parentID, n.Level, n.Label, n.Heading, n.Ordinal); err != nil {
			return 0, 0, fmt.Errorf("loader: upserting structure node %s: %w", n.ID, err)
		}
	}

	after, err := countRows(ctx, tx, "structure")
	if err != nil {
		return 0, 0, err
	}
	inserted, updated := upsertCounts(before, after, len(batch))
	return inserted, updated, nil
}
