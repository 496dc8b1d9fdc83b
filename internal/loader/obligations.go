package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bbiangul/legalpipe/internal/types"
)

// ObligationsLoader loads regex- and LLM-detected obligation phrases
// (stages S4, S6).
type ObligationsLoader struct{}

func (ObligationsLoader) NewRecord() any { return &types.Obligation{} }

func (ObligationsLoader) Validate(record any) error {
	o := record.(*types.Obligation)
	if o.SectionID == "" {
		return errors.New("loader: obligation missing section_id")
	}
	if len(o.Phrase) < 5 || len(o.Phrase) > 200 {
		return errors.New("loader: obligation phrase must be 5-200 characters")
	}
	if (o.Value == nil) != (o.Unit == nil) {
		return errors.New("loader: obligation value and unit must co-occur")
	}
	return nil
}

func (ObligationsLoader) WriteBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, batch []any) (int, int, error) {
	before, err := countRows(ctx, tx, "obligations")
	if err != nil {
		return 0, 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO obligations (jurisdiction, section_id, category, phrase, value, unit, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jurisdiction, section_id, phrase) DO UPDATE SET
			category = excluded.category,
			value = excluded.value,
			unit = excluded.unit,
			confidence = excluded.confidence
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("loader: preparing obligations upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		o := r.(*types.Obligation)
		jur := o.Jurisdiction
		if jur == "" {
			jur = jurisdiction
		}
		var value, confidence any
		var unit any
		if o.Value != nil {
			value = *o.Value
		}
		if o.Unit != nil {
			unit = *o.Unit
		}
		if o.Confidence != nil {
			confidence = *o.Confidence
		}
		if _, err := stmt.ExecContext(ctx, jur, o.SectionID, o.Category, o.Phrase, value, unit, confidence); err != nil {
			return 0, 0, fmt.Errorf("loader: upserting obligation on %s: %w", o.SectionID, err)
		}
	}

	after, err := countRows(ctx, tx, "obligations")
	if err != nil {
		return 0, 0, err
	}
	inserted, updated := upsertCounts(before, after, len(batch))
	return inserted, updated, nil
}
