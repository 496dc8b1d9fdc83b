package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
)

// TestSectionRoundTripIsByteIdentical covers the round-trip property: parsing
// a section, serialising it, re-parsing, and re-serialising must produce
// byte-identical NDJSON. The golden file pins the exact serialised form so a
// field-order or encoding regression shows up as a diff.
func TestSectionRoundTripIsByteIdentical(t *testing.T) {
	effective := time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)
	section := Section{
		ID:           "x-1-101",
		Jurisdiction: "x",
		Citation:     "X Code § 1-101",
		Heading:      "Definitions",
		TextPlain:    "As used in this title, the following terms apply.",
		Ancestors: []AncestorRef{
			{Type: "title", Label: "Title 1", ID: "x-t1"},
			{Type: "chapter", Label: "Chapter 1", ID: "x-t1-c1"},
		},
		TitleLabel:    "Title 1",
		ChapterLabel:  "Chapter 1",
		EffectiveDate: &effective,
	}

	first, err := marshalNoEscape(section)
	if err != nil {
		t.Fatalf("marshaling section: %v", err)
	}

	var reparsed Section
	if err := json.Unmarshal(first, &reparsed); err != nil {
		t.Fatalf("unmarshaling section: %v", err)
	}

	second, err := marshalNoEscape(reparsed)
	if err != nil {
		t.Fatalf("re-marshaling section: %v", err)
	}

	if string(first) != string(second) {
		t.Fatalf("round-trip not byte-identical:\nfirst:  %s\nsecond: %s", first, second)
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, "section_round_trip", second)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf []byte
	w := &sliceWriter{&buf}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

type sliceWriter struct {
	buf *[]byte
}

func (w *sliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
