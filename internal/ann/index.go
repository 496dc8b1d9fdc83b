package ann

import (
	"math"
	"math/rand"
	"sort"
)

// Neighbor is one search result: a candidate id paired with its inner
// product (cosine, since vectors are L2-normalized) score against the
// query.
type Neighbor struct {
	ID    string
	Score float64
}

// Index is implemented by both Flat and IVF, letting callers swap exact
// for approximate search without touching the surrounding stage code.
type Index interface {
	Add(id string, vec []float32)
	Build()
	Search(query []float32, k int) []Neighbor
	Len() int
}

func normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// FlatIndex is an exhaustive inner-product index: 100% accurate, O(n)
// per query. Mirrors faiss.IndexFlatIP, used for corpora small enough
// that approximate search buys nothing.
type FlatIndex struct {
	ids     []string
	vectors [][]float32
}

// NewFlatIndex returns an empty exact index.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{}
}

func (f *FlatIndex) Add(id string, vec []float32) {
	f.ids = append(f.ids, id)
	f.vectors = append(f.vectors, normalize(vec))
}

// Build is a no-op for FlatIndex; it exists to satisfy Index.
func (f *FlatIndex) Build() {}

func (f *FlatIndex) Len() int { return len(f.ids) }

func (f *FlatIndex) Search(query []float32, k int) []Neighbor {
	q := normalize(query)
	results := make([]Neighbor, len(f.ids))
	for i, id := range f.ids {
		results[i] = Neighbor{ID: id, Score: dot(q, f.vectors[i])}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// IVFIndex approximates search by clustering vectors into nlist cells (a
// quantizer trained on the first trainSize vectors via a handful of
// Lloyd iterations) and, at query time, only scanning the nprobe
// nearest cells — the same accuracy/speed tradeoff as
// faiss.IndexIVFFlat with METRIC_INNER_PRODUCT.
type IVFIndex struct {
	nlist     int
	nprobe    int
	trainSize int

	ids      []string
	vectors  [][]float32
	trained  bool
	centroids [][]float32
	// cellMembers[c] holds indices into vectors/ids assigned to cell c.
	cellMembers [][]int
}

// NewIVFIndex returns an index that clusters into nlist cells (capped by
// the caller to min(sqrt(n), 100) as data arrives), training on the
// first trainSize added vectors and probing nprobe cells per query.
func NewIVFIndex(nlist, nprobe, trainSize int) *IVFIndex {
	if nlist < 1 {
		nlist = 1
	}
	if nprobe < 1 {
		nprobe = 1
	}
	return &IVFIndex{nlist: nlist, nprobe: nprobe, trainSize: trainSize}
}

func (ix *IVFIndex) Add(id string, vec []float32) {
	ix.ids = append(ix.ids, id)
	ix.vectors = append(ix.vectors, normalize(vec))
}

func (ix *IVFIndex) Len() int { return len(ix.ids) }

// Build trains the quantizer on the first trainSize vectors (or all of
// them, if fewer) via Lloyd's algorithm, then assigns every vector to
// its nearest centroid.
func (ix *IVFIndex) Build() {
	n := len(ix.vectors)
	if n == 0 {
		return
	}
	nlist := ix.nlist
	if nlist > n {
		nlist = n
	}

	trainSize := ix.trainSize
	if trainSize <= 0 || trainSize > n {
		trainSize = n
	}
	train := ix.vectors[:trainSize]

	ix.centroids = kmeans(train, nlist, 10)
	ix.trained = true

	ix.cellMembers = make([][]int, len(ix.centroids))
	for i, vec := range ix.vectors {
		c := ix.nearestCentroid(vec)
		ix.cellMembers[c] = append(ix.cellMembers[c], i)
	}
}

func (ix *IVFIndex) nearestCentroid(vec []float32) int {
	best, bestScore := 0, math.Inf(-1)
	for c, centroid := range ix.centroids {
		if s := dot(vec, centroid); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func (ix *IVFIndex) Search(query []float32, k int) []Neighbor {
	if !ix.trained {
		ix.Build()
	}
	if len(ix.centroids) == 0 {
		return nil
	}
	q := normalize(query)

	type cellScore struct {
		cell  int
		score float64
	}
	cellScores := make([]cellScore, len(ix.centroids))
	for c, centroid := range ix.centroids {
		cellScores[c] = cellScore{c, dot(q, centroid)}
	}
	sort.Slice(cellScores, func(i, j int) bool { return cellScores[i].score > cellScores[j].score })

	nprobe := ix.nprobe
	if nprobe > len(cellScores) {
		nprobe = len(cellScores)
	}

	var results []Neighbor
	for p := 0; p < nprobe; p++ {
		for _, idx := range ix.cellMembers[cellScores[p].cell] {
			results = append(results, Neighbor{ID: ix.ids[idx], Score: dot(q, ix.vectors[idx])})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// kmeans runs a small, fixed-iteration Lloyd's algorithm seeded from a
// deterministic RNG, good enough for an IVF quantizer (faiss itself
// stops training early by default).
func kmeans(vectors [][]float32, k, iterations int) [][]float32 {
	if k <= 0 {
		return nil
	}
	if k >= len(vectors) {
		centroids := make([][]float32, len(vectors))
		copy(centroids, vectors)
		return centroids
	}

	rng := rand.New(rand.NewSource(42))
	perm := rng.Perm(len(vectors))
	centroids := make([][]float32, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float32(nil), vectors[perm[i]]...)
	}

	dim := len(vectors[0])
	for iter := 0; iter < iterations; iter++ {
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}

		for _, vec := range vectors {
			best, bestScore := 0, math.Inf(-1)
			for c, centroid := range centroids {
				if s := dot(vec, centroid); s > bestScore {
					best, bestScore = c, s
				}
			}
			counts[best]++
			for d, v := range vec {
				sums[best][d] += float64(v)
			}
		}

		for c := range centroids {
			if counts[c] == 0 {
				continue // keep the previous centroid; an empty cell isn't reseeded
			}
			next := make([]float32, dim)
			for d := 0; d < dim; d++ {
				next[d] = float32(sums[c][d] / float64(counts[c]))
			}
			centroids[c] = normalize(next)
		}
	}
	return centroids
}
