package dedup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveMapAndLoadMapRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup_map.bin")
	merged := map[string]string{"dc-1-102": "dc-1-101", "dc-1-103": "dc-1-101"}

	require.NoError(t, SaveMap(path, merged))

	loaded, err := LoadMap(path)
	require.NoError(t, err)
	assert.Equal(t, merged, loaded)
}

func TestLoadMapMissingFileIsEmpty(t *testing.T) {
	loaded, err := LoadMap(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSaveStatsWritesReadableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup_stats.json")
	stats := ComputeStats(10, map[string]string{"a": "b"}, map[string]map[string]string{
		"obligations": {"a": "b"},
	})

	require.NoError(t, SaveStats(path, stats))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_sections": 10`)
}
