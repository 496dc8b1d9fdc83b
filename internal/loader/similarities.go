package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bbiangul/legalpipe/internal/types"
)

// SimilarityLoader loads S5's canonical section-pair similarity scores.
// A reversed pair (SectionA > SectionB) is rejected here as a second
// layer of defense on top of internal/ann's own canonicalization before
// emission.
type SimilarityLoader struct{}

func (SimilarityLoader) NewRecord() any { return &types.SimilarityPair{} }

func (SimilarityLoader) Validate(record any) error {
	p := record.(*types.SimilarityPair)
	if p.SectionA == "" || p.SectionB == "" {
		return errors.New("loader: similarity pair missing section id")
	}
	if p.SectionA >= p.SectionB {
		return errors.New("loader: similarity pair not in canonical order")
	}
	if p.Similarity < 0 || p.Similarity > 1 {
		return errors.New("loader: similarity out of [0,1] range")
	}
	return nil
}

func (SimilarityLoader) WriteBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, batch []any) (int, int, error) {
	before, err := countRows(ctx, tx, "section_similarities")
	if err != nil {
		return 0, 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO section_similarities (jurisdiction, section_a, section_b, similarity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(jurisdiction, section_a, section_b) DO UPDATE SET
			similarity = excluded.similarity
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("loader: preparing similarities upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		p := r.(*types.SimilarityPair)
		jur := p.Jurisdiction
		if jur == "" {
			jur = jurisdiction
		}
		if _, err := stmt.ExecContext(ctx, jur, p.SectionA, p.SectionB, p.Similarity); err != nil {
			return 0, 0, fmt.Errorf("loader: upserting similarity %s/%s: %w", p.SectionA, p.SectionB, err)
		}
	}

	after, err := countRows(ctx, tx, "section_similarities")
	if err != nil {
		return 0, 0, err
	}
	inserted, updated := upsertCounts(before, after, len(batch))
	return inserted, updated, nil
}

// ClassificationLoader loads S9's relationship-kind labels over
// existing similarity pairs.
type ClassificationLoader struct{}

func (ClassificationLoader) NewRecord() any { return &types.Classification{} }

func (ClassificationLoader) Validate(record any) error {
	c := record.(*types.Classification)
	if c.SectionA == "" || c.SectionB == "" {
		return errors.New("loader: classification missing section id")
	}
	switch c.Kind {
	case types.ClassDuplicate, types.ClassSuperseded, types.ClassRelated, types.ClassConflicting:
	default:
		return fmt.Errorf("loader: unknown classification kind %q", c.Kind)
	}
	return nil
}

func (ClassificationLoader) WriteBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, batch []any) (int, int, error) {
	before, err := countRows(ctx, tx, "section_similarity_classifications")
	if err != nil {
		return 0, 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO section_similarity_classifications
			(jurisdiction, section_a, section_b, kind, explanation, model_used, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jurisdiction, section_a, section_b) DO UPDATE SET
			kind = excluded.kind,
			explanation = excluded.explanation,
			model_used = excluded.model_used,
			analyzed_at = excluded.analyzed_at
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("loader: preparing classifications upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		c := r.(*types.Classification)
		jur := c.Jurisdiction
		if jur == "" {
			jur = jurisdiction
		}
		if _, err := stmt.ExecContext(ctx, jur, c.SectionA, c.SectionB, c.Kind, c.Explanation, c.ModelUsed, c.AnalyzedAt); err != nil {
			return 0, 0, fmt.Errorf("loader: upserting classification %s/%s: %w", c.SectionA, c.SectionB, err)
		}
	}

	after, err := countRows(ctx, tx, "section_similarity_classifications")
	if err != nil {
		return 0, 0, err
	}
	inserted, updated := upsertCounts(before, after, len(batch))
	return inserted, updated, nil
}
