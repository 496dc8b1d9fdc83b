package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bbiangul/legalpipe/internal/types"
)

// SectionsLoader loads the statutory section registry (stage S1's
// output), the root of every downstream FK chain.
type SectionsLoader struct{}

func (SectionsLoader) NewRecord() any { return &types.Section{} }

func (SectionsLoader) Validate(record any) error {
	s := record.(*types.Section)
	if s.ID == "" {
		return errors.New("loader: section missing id")
	}
	if s.TextPlain == "" {
		return errors.New("loader: section missing text_plain")
	}
	return nil
}

func (SectionsLoader) WriteBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, batch []any) (int, int, error) {
	before, err := countRows(ctx, tx, "sections")
	if err != nil {
		return 0, 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sections (jurisdiction, id, citation, heading, text_plain, text_html,
			ancestors, title_label, chapter_label, effective_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jurisdiction, id) DO UPDATE SET
			citation = excluded.citation,
			heading = excluded.heading,
			text_plain = excluded.text_plain,
			text_html = excluded.text_html,
			ancestors = excluded.ancestors,
			title_label = excluded.title_label,
			chapter_label = excluded.chapter_label,
			effective_date = excluded.effective_date
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("loader: preparing sections upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		s := r.(*types.Section)
		jur := s.Jurisdiction
		if jur == "" {
			jur = jurisdiction
		}
		ancestors, err := json.Marshal(s.Ancestors)
		if err != nil {
			return 0, 0, fmt.Errorf("loader: encoding ancestors for %s: %w", s.ID, err)
		}
		var effectiveDate any
		if s.EffectiveDate != nil {
			effectiveDate = *s.EffectiveDate
		}
		if _, err := stmt.ExecContext(ctx, jur, s.ID, s.Citation, s.Heading, s.TextPlain, s.TextHTML,
			string(ancestors), s.TitleLabel, s.ChapterLabel, effectiveDate); err != nil {
			return 0, 0, fmt.Errorf("loader: upserting section %s: %w", s.ID, err)
		}
	}

	after, err := countRows(ctx, tx, "sections")
	if err != nil {
		return 0, 0, err
	}
	inserted, updated := upsertCounts(before, after, len(batch))
	return inserted, updated, nil
}
