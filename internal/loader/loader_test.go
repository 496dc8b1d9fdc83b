package loader

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbiangul/legalpipe/internal/ndjson"
	"github.com/bbiangul/legalpipe/internal/types"
)

func writeNDJSON(t *testing.T, path string, records ...any) {
	t.Helper()
	w, err := ndjson.OpenWriter(path)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSectionsLoaderInsertsAndUpdates(t *testing.T) {
	db := openTestDB(t)
	input := filepath.Join(t.TempDir(), "sections.ndjson")
	writeNDJSON(t, input,
		types.Section{ID: "dc-1-101", Jurisdiction: "dc", Citation: "§1-101", TextPlain: "first version"},
		types.Section{ID: "dc-1-102", Jurisdiction: "dc", Citation: "§1-102", TextPlain: "second"},
	)

	cp := ndjson.NewStore(filepath.Join(t.TempDir(), "sections.ckpt"))
	driver := NewDriver(db, cp, nil)
	stats, err := driver.Run(context.Background(), input, "dc", SectionsLoader{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 0, stats.Updated)

	// Re-running against an updated version of one section upserts rather
	// than duplicating, but the checkpoint already consumed this input, so
	// rewrite to a fresh file and a fresh checkpoint to simulate a rerun.
	input2 := filepath.Join(t.TempDir(), "sections2.ndjson")
	writeNDJSON(t, input2,
		types.Section{ID: "dc-1-101", Jurisdiction: "dc", Citation: "§1-101", TextPlain: "revised version"},
	)
	cp2 := ndjson.NewStore(filepath.Join(t.TempDir(), "sections2.ckpt"))
	driver2 := NewDriver(db, cp2, nil)
	stats2, err := driver2.Run(context.Background(), input2, "dc", SectionsLoader{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats2.Inserted)
	assert.Equal(t, 1, stats2.Updated)

	var text string
	row := db.QueryRow("SELECT text_plain FROM sections WHERE id = ?", "dc-1-101")
	require.NoError(t, row.Scan(&text))
	assert.Equal(t, "revised version", text)
}

func TestDriverResumesFromCheckpointAcrossRestart(t *testing.T) {
	db := openTestDB(t)
	input := filepath.Join(t.TempDir(), "structure.ndjson")
	writeNDJSON(t, input,
		types.StructureNode{ID: "t1", Jurisdiction: "dc", Label: "Title 1", Level: 1, Ordinal: 1},
		types.StructureNode{ID: "t2", Jurisdiction: "dc", Label: "Title 2", Level: 1, Ordinal: 2},
	)

	cpPath := filepath.Join(t.TempDir(), "structure.ckpt")
	cp := ndjson.NewStore(cpPath)
	driver := NewDriver(db, cp, nil)
	stats, err := driver.Run(context.Background(), input, "dc", StructureLoader{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)

	// A second run against the same (fully-consumed) input and checkpoint
	// processes nothing new.
	driver2 := NewDriver(db, ndjson.NewStore(cpPath), nil)
	stats2, err := driver2.Run(context.Background(), input, "dc", StructureLoader{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats2.Inserted)
	assert.Equal(t, 0, stats2.Updated)
}

func TestObligationsLoaderRejectsMismatchedValueUnit(t *testing.T) {
	value := 30.0
	o := &types.Obligation{SectionID: "dc-1-101", Category: types.ObligationDeadline, Phrase: "within thirty days", Value: &value}
	err := ObligationsLoader{}.Validate(o)
	assert.Error(t, err)
}

func TestSimilarityLoaderRejectsNonCanonicalOrder(t *testing.T) {
	p := &types.SimilarityPair{SectionA: "b-2", SectionB: "a-1", Similarity: 0.9}
	err := SimilarityLoader{}.Validate(p)
	assert.Error(t, err)
}

func TestAnalysisLoaderWritesIndicatorsAndHighlights(t *testing.T) {
	db := openTestDB(t)
	// reporting_records has a foreign key to sections, so the parent
	// section must exist first.
	_, insErr := db.Exec(`INSERT INTO sections (jurisdiction, id, citation, text_plain, ancestors)
		VALUES ('dc', 'dc-1-101', '§1-101', 'section text', '[]')`)
	require.NoError(t, insErr)
	input := filepath.Join(t.TempDir(), "reporting.ndjson")
	writeNDJSON(t, input, types.ReportingRecord{
		Jurisdiction: "dc",
		SectionID:    "dc-1-101",
		Summary:      "has a reporting deadline",
		ModelUsed:    "gpt-4o-mini",
		Indicators: []types.Indicator{
			{Severity: "high", Complexity: "low", MatchedPhrases: []string{"shall report annually"}},
		},
	})

	cp := ndjson.NewStore(filepath.Join(t.TempDir(), "reporting.ckpt"))
	driver := NewDriver(db, cp, nil)
	stats, err := driver.Run(context.Background(), input, "dc", ReportingLoader{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	var phraseCount int
	row := db.QueryRow(`
		SELECT COUNT(*) FROM reporting_highlights h
		JOIN reporting_indicators i ON i.id = h.indicator_id
		WHERE i.section_id = ?`, "dc-1-101")
	require.NoError(t, row.Scan(&phraseCount))
	assert.Equal(t, 1, phraseCount)
}

func TestAnalysisLoaderRerunIsIdempotentNotAccumulative(t *testing.T) {
	db := openTestDB(t)
	_, insErr := db.Exec(`INSERT INTO sections (jurisdiction, id, citation, text_plain, ancestors)
		VALUES ('dc', 'dc-1-101', '§1-101', 'section text', '[]')`)
	require.NoError(t, insErr)
	makeInput := func(phrase string) string {
		path := filepath.Join(t.TempDir(), phrase+".ndjson")
		writeNDJSON(t, path, types.ReportingRecord{
			Jurisdiction: "dc",
			SectionID:    "dc-1-101",
			Indicators: []types.Indicator{
				{Severity: "high", Complexity: "low", MatchedPhrases: []string{phrase}},
			},
		})
		return path
	}

	driver1 := NewDriver(db, ndjson.NewStore(filepath.Join(t.TempDir(), "a.ckpt")), nil)
	_, err := driver1.Run(context.Background(), makeInput("first run phrase"), "dc", ReportingLoader{})
	require.NoError(t, err)

	driver2 := NewDriver(db, ndjson.NewStore(filepath.Join(t.TempDir(), "b.ckpt")), nil)
	_, err = driver2.Run(context.Background(), makeInput("second run phrase"), "dc", ReportingLoader{})
	require.NoError(t, err)

	var indicatorCount int
	row := db.QueryRow("SELECT COUNT(*) FROM reporting_indicators WHERE section_id = ?", "dc-1-101")
	require.NoError(t, row.Scan(&indicatorCount))
	assert.Equal(t, 1, indicatorCount, "rerun must replace, not accumulate, indicators")
}
