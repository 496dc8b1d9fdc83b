// Package dedup implements the MinHash/LSH near-duplicate detector (stage
// S2): tokenize, build MinHash signatures, bucket candidates with LSH
// banding, verify candidates against the Jaccard threshold, and merge
// results computed at several text-truncation limits into one
// section-id -> canonical-id map.
package dedup

import (
	"sort"
	"strings"
)

// Config holds the detector's tunable parameters.
type Config struct {
	// NumPerm is the number of MinHash permutations.
	NumPerm int
	// Threshold is the minimum estimated Jaccard similarity for a
	// candidate pair to be considered a duplicate.
	Threshold float64
	// MinChars excludes sections whose trimmed text is shorter than this
	// many characters.
	MinChars int
}

// DefaultConfig returns the detector's standard tuning.
func DefaultConfig() Config {
	return Config{NumPerm: 128, Threshold: 0.95, MinChars: 50}
}

// TruncationLimits are the per-downstream-stage character budgets the
// multi-resolution detector runs at, matching the truncation limits S6,
// S8, and S9 apply to section text before sending it to an LLM.
var TruncationLimits = map[string]int{
	"obligations": 2000,
	"reporting":   3000,
	"similarity":  2000,
}

// tokenize lowercases text and splits on whitespace.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Detect runs near-duplicate detection over sections at one truncation
// limit, returning a sparse section-id -> canonical-id map. sections maps
// a section id to its text_plain; only sections whose truncated,
// whitespace-trimmed text reaches cfg.MinChars characters participate.
func Detect(sections map[string]string, limit int, cfg Config) map[string]string {
	signatures := make(map[string]Signature, len(sections))
	ids := make([]string, 0, len(sections))

	for id, text := range sections {
		truncated := text
		if limit > 0 && len(truncated) > limit {
			truncated = truncated[:limit]
		}
		if len(strings.TrimSpace(truncated)) < cfg.MinChars {
			continue
		}
		signatures[id] = Sign(tokenize(truncated), cfg.NumPerm)
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic iteration order

	groups := findGroups(ids, signatures, cfg)

	dedupMap := make(map[string]string)
	for _, group := range groups {
		sorted := append([]string(nil), group...)
		sort.Strings(sorted)
		canonical := sorted[0]
		for _, id := range sorted[1:] {
			dedupMap[id] = canonical
		}
	}
	return dedupMap
}

// MergeMaps merges dedup maps computed at several truncation limits into
// one. Limits are processed in ascending order and the first map to
// claim a section id wins, so the shortest-limit (most conservative)
// mapping always takes precedence on collision.
func MergeMaps(byLimit map[string]map[string]string, limits map[string]int) map[string]string {
	names := make([]string, 0, len(byLimit))
	for name := range byLimit {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return limits[names[i]] < limits[names[j]] })

	merged := make(map[string]string)
	for _, name := range names {
		for id, canonical := range byLimit[name] {
			if _, exists := merged[id]; !exists {
				merged[id] = canonical
			}
		}
	}

	// Cross-limit merging can chain mappings (one limit maps C to B, a
	// shorter one maps B to A), leaving a canonical id as a key. Resolve
	// every chain to its terminal canonical so the final map is a
	// function whose values never appear as keys.
	for id, canonical := range merged {
		seen := map[string]bool{id: true}
		for {
			next, ok := merged[canonical]
			if !ok || seen[canonical] {
				break
			}
			seen[canonical] = true
			canonical = next
		}
		merged[id] = canonical
	}
	return merged
}
