package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bbiangul/legalpipe/internal/types"
)

// deadlinePattern matches "within N day(s)" / "within N calendar days",
// the dominant statutory deadline phrasing. The day count must fall in
// [1, 365] to be accepted.
var deadlinePattern = regexp.MustCompile(`(?i)\bwithin\s+(\d+)\s+(?:calendar\s+)?(day|days|business\s+day|business\s+days)\b`)

// amountPattern matches a dollar figure such as "$500" or "$1,250.50".
var amountPattern = regexp.MustCompile(`\$\s?([\d,]+(?:\.\d{1,2})?)`)

// phraseWindow is how many characters of context on each side of a match
// are kept as the reported Phrase, then clamped to the [5,200] bound.
const phraseWindow = 60

// ExtractDeadlines scans a section's plain text for "within N days"-style
// phrasing and returns one Obligation per match with Category "deadline",
// Value set to the day count, and Unit "days". Day counts outside [1,365]
// are rejected (not emitted).
func ExtractDeadlines(section types.Section) []types.Obligation {
	var out []types.Obligation
	for _, loc := range deadlinePattern.FindAllStringSubmatchIndex(section.TextPlain, -1) {
		days, ok := parseDayCount(section.TextPlain[loc[2]:loc[3]])
		if !ok {
			continue
		}
		phrase := clampPhrase(phraseAround(section.TextPlain, loc[0], loc[1]))
		if phrase == "" {
			continue
		}
		unit := "days"
		value := days
		out = append(out, types.Obligation{
			Jurisdiction: section.Jurisdiction,
			SectionID:    section.ID,
			Category:     types.ObligationDeadline,
			Phrase:       phrase,
			Value:        &value,
			Unit:         &unit,
		})
	}
	return out
}

// ExtractAmounts scans a section's plain text for dollar figures and
// returns one Obligation per match with Category "allocation", Value in
// cents, and Unit "usd_cents". Non-positive amounts are rejected.
func ExtractAmounts(section types.Section) []types.Obligation {
	var out []types.Obligation
	for _, loc := range amountPattern.FindAllStringSubmatchIndex(section.TextPlain, -1) {
		cents, ok := parseDollarCents(section.TextPlain[loc[2]:loc[3]])
		if !ok {
			continue
		}
		phrase := clampPhrase(phraseAround(section.TextPlain, loc[0], loc[1]))
		if phrase == "" {
			continue
		}
		unit := "usd_cents"
		value := cents
		out = append(out, types.Obligation{
			Jurisdiction: section.Jurisdiction,
			SectionID:    section.ID,
			Category:     types.ObligationAllocation,
			Phrase:       phrase,
			Value:        &value,
			Unit:         &unit,
		})
	}
	return out
}

// parseDayCount parses raw (e.g. "30") and enforces the day-count
// boundary: [1, 365] inclusive.
func parseDayCount(raw string) (float64, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 365 {
		return 0, false
	}
	return float64(n), true
}

// parseDollarCents parses raw (e.g. "1,250.50") into integer cents and
// rejects non-positive amounts.
func parseDollarCents(raw string) (float64, bool) {
	raw = strings.ReplaceAll(raw, ",", "")
	dollars, err := strconv.ParseFloat(raw, 64)
	if err != nil || dollars <= 0 {
		return 0, false
	}
	return dollars * 100, true
}

// phraseAround returns the match plus up to phraseWindow characters of
// surrounding context on each side, trimmed to whitespace boundaries.
func phraseAround(text string, start, end int) string {
	lo := start - phraseWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + phraseWindow
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}

// clampPhrase enforces the Obligation.Phrase length bound of
// [5, 200] characters, truncating on the high end and rejecting
// (returning "") anything too short to be meaningful.
func clampPhrase(phrase string) string {
	if len(phrase) < 5 {
		return ""
	}
	if len(phrase) > 200 {
		phrase = strings.TrimSpace(phrase[:200])
	}
	return phrase
}
