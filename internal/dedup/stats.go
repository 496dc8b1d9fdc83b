package dedup

import "sort"

// PerLimitStats summarizes one truncation limit's run.
type PerLimitStats struct {
	DuplicatesFound int `json:"duplicates_found"`
	Groups          int `json:"groups"`
}

// Stats reports on the final merged dedup map: how many sections were
// collapsed, the group-size distribution, and the estimated LLM-call
// reduction downstream stages gain from it.
type Stats struct {
	TotalSections            int                      `json:"total_sections"`
	DuplicateSections        int                      `json:"duplicate_sections"`
	UniqueCanonicalSections  int                      `json:"unique_canonical_sections"`
	DuplicateGroups          int                      `json:"duplicate_groups"`
	MaxGroupSize             int                      `json:"max_group_size"`
	AvgGroupSize             float64                  `json:"avg_group_size"`
	EstimatedLLMCallReductionPct float64              `json:"estimated_llm_call_reduction_pct"`
	PerTruncationLimit       map[string]PerLimitStats `json:"per_truncation_limit"`
}

// ComputeStats derives Stats from the final merged map, the per-limit
// maps that fed MergeMaps, and the total section count.
func ComputeStats(totalSections int, finalMap map[string]string, perLimit map[string]map[string]string) Stats {
	groupSizes := map[string]int{}
	for _, canonical := range finalMap {
		groupSizes[canonical]++
	}

	sizes := make([]int, 0, len(groupSizes))
	for _, dupes := range groupSizes {
		sizes = append(sizes, dupes+1) // +1 for the canonical member itself
	}
	sort.Ints(sizes)

	var maxSize int
	var sum int
	for _, s := range sizes {
		sum += s
		if s > maxSize {
			maxSize = s
		}
	}
	avg := 0.0
	if len(sizes) > 0 {
		avg = float64(sum) / float64(len(sizes))
	}

	perLimitStats := make(map[string]PerLimitStats, len(perLimit))
	for name, m := range perLimit {
		canonicals := map[string]bool{}
		for _, c := range m {
			canonicals[c] = true
		}
		perLimitStats[name] = PerLimitStats{DuplicatesFound: len(m), Groups: len(canonicals)}
	}

	reduction := 0.0
	if totalSections > 0 {
		reduction = float64(len(finalMap)) / float64(totalSections) * 100
	}

	return Stats{
		TotalSections:                 totalSections,
		DuplicateSections:             len(finalMap),
		UniqueCanonicalSections:       totalSections - len(finalMap),
		DuplicateGroups:               len(groupSizes),
		MaxGroupSize:                  maxSize,
		AvgGroupSize:                  avg,
		EstimatedLLMCallReductionPct:  reduction,
		PerTruncationLimit:            perLimitStats,
	}
}
