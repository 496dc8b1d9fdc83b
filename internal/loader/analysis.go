package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bbiangul/legalpipe/internal/types"
)

// analysisTables names the record/indicator/highlight table triple one
// AnalysisLoader instance targets. ReportingRecord, AnachronismAnalysis,
// and ImplementationAnalysis share an identical shape, so one loader
// implementation serves all three.
type analysisTables struct {
	record     string
	indicators string
	highlights string
}

var (
	reportingTables       = analysisTables{"reporting_records", "reporting_indicators", "reporting_highlights"}
	anachronismTables     = analysisTables{"anachronism_records", "anachronism_indicators", "anachronism_highlights"}
	implementationTables  = analysisTables{"implementation_records", "implementation_indicators", "implementation_highlights"}
)

// analysisJSON is the common wire shape of ReportingRecord,
// AnachronismAnalysis, and ImplementationAnalysis.
type analysisJSON struct {
	Jurisdiction string            `json:"jurisdiction"`
	SectionID    string            `json:"section_id"`
	Indicators   []types.Indicator `json:"indicators"`
	Summary      string            `json:"summary"`
	ModelUsed    string            `json:"model_used"`
	AnalyzedAt   time.Time         `json:"analyzed_at"`
}

func toAnalysisJSON(v any) (analysisJSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return analysisJSON{}, err
	}
	var a analysisJSON
	if err := json.Unmarshal(b, &a); err != nil {
		return analysisJSON{}, err
	}
	return a, nil
}

// ReportingLoader loads stage S8's output.
type ReportingLoader struct{}

func (ReportingLoader) NewRecord() any { return &types.ReportingRecord{} }
func (ReportingLoader) Validate(record any) error {
	return validateAnalysis(record.(*types.ReportingRecord).SectionID)
}
func (ReportingLoader) WriteBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, batch []any) (int, int, error) {
	return writeAnalysisBatch(ctx, tx, jurisdiction, reportingTables, batch)
}

// AnachronismLoader loads stage S10's output.
type AnachronismLoader struct{}

func (AnachronismLoader) NewRecord() any { return &types.AnachronismAnalysis{} }
func (AnachronismLoader) Validate(record any) error {
	return validateAnalysis(record.(*types.AnachronismAnalysis).SectionID)
}
func (AnachronismLoader) WriteBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, batch []any) (int, int, error) {
	return writeAnalysisBatch(ctx, tx, jurisdiction, anachronismTables, batch)
}

// ImplementationLoader loads stage S11's output.
type ImplementationLoader struct{}

func (ImplementationLoader) NewRecord() any { return &types.ImplementationAnalysis{} }
func (ImplementationLoader) Validate(record any) error {
	return validateAnalysis(record.(*types.ImplementationAnalysis).SectionID)
}
func (ImplementationLoader) WriteBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, batch []any) (int, int, error) {
	return writeAnalysisBatch(ctx, tx, jurisdiction, implementationTables, batch)
}

func validateAnalysis(sectionID string) error {
	if sectionID == "" {
		return errors.New("loader: analysis record missing section_id")
	}
	return nil
}

// writeAnalysisBatch upserts the record row for each batch entry, then
// deletes and re-inserts its indicators (and each indicator's
// highlights) so reruns are idempotent rather than accumulative, per
// the multi-table loader discipline. The whole batch runs in the
// caller's transaction.
func writeAnalysisBatch(ctx context.Context, tx *sql.Tx, jurisdiction string, t analysisTables, batch []any) (int, int, error) {
	before, err := countRows(ctx, tx, t.record)
	if err != nil {
		return 0, 0, err
	}

	upsertRecord, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (jurisdiction, section_id, summary, model_used, analyzed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(jurisdiction, section_id) DO UPDATE SET
			summary = excluded.summary,
			model_used = excluded.model_used,
			analyzed_at = excluded.analyzed_at
	`, t.record))
	if err != nil {
		return 0, 0, fmt.Errorf("loader: preparing %s upsert: %w", t.record, err)
	}
	defer upsertRecord.Close()

	deleteIndicators, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE jurisdiction = ? AND section_id = ?`, t.indicators))
	if err != nil {
		return 0, 0, fmt.Errorf("loader: preparing %s delete: %w", t.indicators, err)
	}
	defer deleteIndicators.Close()

	insertIndicator, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (jurisdiction, section_id, severity, complexity, recommendation)
		VALUES (?, ?, ?, ?, ?)
	`, t.indicators))
	if err != nil {
		return 0, 0, fmt.Errorf("loader: preparing %s insert: %w", t.indicators, err)
	}
	defer insertIndicator.Close()

	insertHighlight, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (indicator_id, phrase) VALUES (?, ?)
	`, t.highlights))
	if err != nil {
		return 0, 0, fmt.Errorf("loader: preparing %s insert: %w", t.highlights, err)
	}
	defer insertHighlight.Close()

	for _, r := range batch {
		a, err := toAnalysisJSON(r)
		if err != nil {
			return 0, 0, fmt.Errorf("loader: decoding %s record: %w", t.record, err)
		}
		jur := a.Jurisdiction
		if jur == "" {
			jur = jurisdiction
		}

		if _, err := upsertRecord.ExecContext(ctx, jur, a.SectionID, a.Summary, a.ModelUsed, a.AnalyzedAt); err != nil {
			return 0, 0, fmt.Errorf("loader: upserting %s row for %s: %w", t.record, a.SectionID, err)
		}
		if _, err := deleteIndicators.ExecContext(ctx, jur, a.SectionID); err != nil {
			return 0, 0, fmt.Errorf("loader: clearing %s for %s: %w", t.indicators, a.SectionID, err)
		}

		for _, ind := range a.Indicators {
			res, err := insertIndicator.ExecContext(ctx, jur, a.SectionID, ind.Severity, ind.Complexity, ind.Recommendation)
			if err != nil {
				return 0, 0, fmt.Errorf("loader: inserting indicator for %s: %w", a.SectionID, err)
			}
			indicatorID, err := res.LastInsertId()
			if err != nil {
				return 0, 0, fmt.Errorf("loader: reading indicator id for %s: %w", a.SectionID, err)
			}
			for _, phrase := range ind.MatchedPhrases {
				if _, err := insertHighlight.ExecContext(ctx, indicatorID, phrase); err != nil {
					return 0, 0, fmt.Errorf("loader: inserting highlight for %s: %w", a.SectionID, err)
				}
			}
		}
	}

	after, err := countRows(ctx, tx, t.record)
	if err != nil {
		return 0, 0, err
	}
	inserted, updated := upsertCounts(before, after, len(batch))
	return inserted, updated, nil
}
