package main

import (
	"time"

	"github.com/bbiangul/legalpipe/internal/types"
)

// analysisSchemaSrc is shared by S8/S10/S11: each produces a list of
// typed indicators plus a free-text summary.
const analysisSchemaSrc = `
indicators!: [...]
summary!: string
`

// parseIndicators extracts the indicators/summary shape common to
// ReportingRecord, AnachronismAnalysis, and ImplementationAnalysis from
// a cascade.Result's parsed data.
func parseIndicators(data map[string]any) ([]types.Indicator, string) {
	rawList, _ := data["indicators"].([]any)
	indicators := make([]types.Indicator, 0, len(rawList))
	for _, item := range rawList {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		indicators = append(indicators, types.Indicator{
			Severity:       asString(obj["severity"]),
			Complexity:     asString(obj["complexity"]),
			MatchedPhrases: asStringSlice(obj["matched_phrases"]),
			Recommendation: asString(obj["recommendation"]),
		})
	}
	return indicators, asString(data["summary"])
}

// classificationTimeout is the per-call timeout for a structured LLM
// cascade call: 30s for classification-class calls, 90s when any
// configured model in the run is a local-inference fallback (larger
// payloads, no network round-trip to amortize against).
func classificationTimeout(cfg Config) time.Duration {
	for _, m := range cfg.Models {
		if m.Local {
			return 90 * time.Second
		}
	}
	return 30 * time.Second
}

func asStringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
