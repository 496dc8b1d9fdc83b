package ann

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndexFindsExactNeighbor(t *testing.T) {
	idx := NewFlatIndex()
	idx.Add("a", []float32{1, 0, 0})
	idx.Add("b", []float32{0.9, 0.1, 0})
	idx.Add("c", []float32{0, 1, 0})
	idx.Build()

	results := idx.Search([]float32{1, 0, 0}, 3)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "b", results[1].ID)
}

func TestFlatIndexSearchRespectsK(t *testing.T) {
	idx := NewFlatIndex()
	idx.Add("a", []float32{1, 0})
	idx.Add("b", []float32{0, 1})
	idx.Build()

	results := idx.Search([]float32{1, 0}, 1)
	assert.Len(t, results, 1)
}

func TestIVFIndexFindsNeighborInSameRegion(t *testing.T) {
	idx := NewIVFIndex(2, 2, 100)
	idx.Add("near-x", []float32{1, 0.01})
	idx.Add("x", []float32{1, 0})
	idx.Add("near-y", []float32{0.01, 1})
	idx.Add("y", []float32{0, 1})
	idx.Build()

	results := idx.Search([]float32{1, 0}, 2)
	require.NotEmpty(t, results)
	assert.Equal(t, "x", results[0].ID)
}

func TestIVFIndexBuildsLazilyOnSearch(t *testing.T) {
	idx := NewIVFIndex(1, 1, 10)
	idx.Add("a", []float32{1, 0})
	idx.Add("b", []float32{0, 1})

	results := idx.Search([]float32{1, 0}, 2)
	assert.NotEmpty(t, results)
}

func TestNormalizeHandlesZeroVector(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, normalize([]float32{0, 0}))
}

func TestIsqrt(t *testing.T) {
	assert.Equal(t, 10, isqrt(100))
	assert.Equal(t, 3, isqrt(10))
	assert.Equal(t, 0, isqrt(0))
}
