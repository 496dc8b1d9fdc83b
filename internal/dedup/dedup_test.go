package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectIdenticalSectionsAreGrouped(t *testing.T) {
	text := ""
	for i := 0; i < 60; i++ {
		text += "the quick brown fox jumps over the lazy dog "
	}
	sections := map[string]string{
		"x-1-2": text,
		"x-1-1": text,
		"x-1-3": "completely unrelated statutory text about zoning variances and permits",
	}
	cfg := DefaultConfig()

	dedupMap := Detect(sections, 2000, cfg)

	require.Equal(t, "x-1-1", dedupMap["x-1-2"])
	_, stillPresent := dedupMap["x-1-1"]
	assert.False(t, stillPresent, "canonical id must not appear as a key")
	_, thirdMapped := dedupMap["x-1-3"]
	assert.False(t, thirdMapped)
}

func TestDetectIgnoresShortSections(t *testing.T) {
	sections := map[string]string{
		"x-1": "too short",
		"x-2": "too short",
	}
	dedupMap := Detect(sections, 2000, DefaultConfig())
	assert.Empty(t, dedupMap)
}

func TestDetectCanonicalIsLexicographicallySmallest(t *testing.T) {
	text := ""
	for i := 0; i < 60; i++ {
		text += "statutory obligation language repeated many times over "
	}
	sections := map[string]string{
		"z-9-9": text,
		"a-1-1": text,
		"m-5-5": text,
	}
	dedupMap := Detect(sections, 2000, DefaultConfig())

	for id, canonical := range dedupMap {
		assert.LessOrEqual(t, canonical, id)
	}
	assert.Equal(t, "a-1-1", dedupMap["z-9-9"])
	assert.Equal(t, "a-1-1", dedupMap["m-5-5"])
	_, canonicalIsKey := dedupMap["a-1-1"]
	assert.False(t, canonicalIsKey)
}

func TestMergeMapsShortestLimitWins(t *testing.T) {
	byLimit := map[string]map[string]string{
		"obligations": {"x-1": "a-1"}, // limit 2000
		"reporting":   {"x-1": "z-9"}, // limit 3000, should lose
	}
	merged := MergeMaps(byLimit, TruncationLimits)
	assert.Equal(t, "a-1", merged["x-1"])
}

func TestMergeMapsResolvesCrossLimitChains(t *testing.T) {
	byLimit := map[string]map[string]string{
		"obligations": {"b-2": "a-1"}, // limit 2000
		"reporting":   {"c-3": "b-2"}, // limit 3000: points at a non-canonical id
	}
	merged := MergeMaps(byLimit, TruncationLimits)
	assert.Equal(t, "a-1", merged["b-2"])
	assert.Equal(t, "a-1", merged["c-3"], "chains must resolve to the terminal canonical")
	_, canonicalIsKey := merged["a-1"]
	assert.False(t, canonicalIsKey)
}

func TestEstimateJaccardIdenticalSignaturesAreOne(t *testing.T) {
	sig := Sign([]string{"a", "b", "c"}, 64)
	assert.Equal(t, 1.0, EstimateJaccard(sig, sig))
}

func TestComputeStatsGroupSizes(t *testing.T) {
	finalMap := map[string]string{
		"x-2": "x-1",
		"x-3": "x-1",
		"y-2": "y-1",
	}
	stats := ComputeStats(10, finalMap, map[string]map[string]string{})
	assert.Equal(t, 10, stats.TotalSections)
	assert.Equal(t, 3, stats.DuplicateSections)
	assert.Equal(t, 7, stats.UniqueCanonicalSections)
	assert.Equal(t, 2, stats.DuplicateGroups)
	assert.Equal(t, 3, stats.MaxGroupSize)
}
