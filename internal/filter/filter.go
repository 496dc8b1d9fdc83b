// Package filter implements the two pre-filters that decide whether a
// section is worth an expensive LLM call: a regex disjunction over
// obligation language, and a cross-encoder-style score against fixed
// reporting-indicator sentences.
package filter

import (
	"regexp"
	"strings"
)

// obligationPatterns is a disjunction of monetary, temporal, penal, and
// constraint indicators; a section matching any of them gets an LLM pass.
var obligationPatterns = []*regexp.Regexp{
	// monetary
	regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d+)?`),
	regexp.MustCompile(`(?i)\bfee\s+of\b`),
	regexp.MustCompile(`(?i)\bshall\s+pay\b`),
	// temporal
	regexp.MustCompile(`(?i)\bwithin\s+\d+\s+(?:calendar\s+)?days?\b`),
	regexp.MustCompile(`(?i)\bno\s+later\s+than\b`),
	regexp.MustCompile(`(?i)\bannually\b|\bquarterly\b|\bmonthly\b`),
	// penal
	regexp.MustCompile(`(?i)\bpenalty\b|\bfine\b|\bmisdemeanor\b|\bviolation\b`),
	// constraint
	regexp.MustCompile(`(?i)\bshall\s+not\b|\bprohibited\b|\brequired\s+to\b`),
}

// RegexPreFilter reports whether text matches any obligation-indicator
// pattern, the gate S6 uses to decide whether a section is queued for
// an LLM call at all.
func RegexPreFilter(text string) bool {
	for _, p := range obligationPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// DefaultCrossEncoderThreshold is deliberately low: a false positive
// costs one extra LLM call, a false negative loses a finding.
const DefaultCrossEncoderThreshold = 0.2

// positiveIndicatorSentences is the fixed set of reference sentences
// candidate text is scored against. The score is the maximum
// token-overlap ratio against any one sentence: best single match wins,
// as with a cross-encoder's top score.
var positiveIndicatorSentences = []string{
	"the agency must submit an annual report to the council",
	"the director shall report on compliance within the fiscal year",
	"a written report must be filed with the oversight committee",
	"the department is required to publish statistics periodically",
}

// CrossEncoderScore returns the maximum token-overlap ratio between
// text and any reference sentence in positiveIndicatorSentences, in
// [0,1].
func CrossEncoderScore(text string) float64 {
	candidate := tokenSet(text)
	if len(candidate) == 0 {
		return 0
	}

	best := 0.0
	for _, sentence := range positiveIndicatorSentences {
		if score := overlapRatio(candidate, tokenSet(sentence)); score > best {
			best = score
		}
	}
	return best
}

// CrossEncoderPreFilter reports whether text scores at or above
// threshold against the positive-indicator sentences.
func CrossEncoderPreFilter(text string, threshold float64) bool {
	return CrossEncoderScore(text) >= threshold
}

func tokenSet(text string) map[string]bool {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// overlapRatio is |reference ∩ candidate| / |reference|: the fraction
// of the reference sentence's vocabulary also present in candidate.
func overlapRatio(candidate, reference map[string]bool) float64 {
	if len(reference) == 0 {
		return 0
	}
	matched := 0
	for tok := range reference {
		if candidate[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(reference))
}
