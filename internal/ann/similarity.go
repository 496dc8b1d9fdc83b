package ann

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bbiangul/legalpipe/internal/llm"
	"github.com/bbiangul/legalpipe/internal/types"
)

// Config controls S5's index mode and pair-emission thresholds.
type Config struct {
	TopK           int     // neighbors requested per section, excluding self
	MinSimilarity  float64 // pairs scoring below this are dropped
	UseIVF         bool
	IVFTrainSize   int // T: vectors used to train the IVF quantizer
	IVFNProbe      int
	CacheFlushEvery int
}

// DefaultConfig returns the stage's standard tuning.
func DefaultConfig() Config {
	return Config{
		TopK:            10,
		MinSimilarity:   0.8,
		UseIVF:          false,
		IVFTrainSize:    5000,
		IVFNProbe:       10,
		CacheFlushEvery: 10,
	}
}

// Section is the minimal input S5 needs per record.
type Section struct {
	ID           string
	Jurisdiction string
	Text         string
}

// ComputeSimilarities embeds every section (reusing cache hits), builds
// an index (flat or IVF per cfg), and returns every qualifying pair in
// canonical order. logger receives cache hit/miss counts and search
// progress.
func ComputeSimilarities(ctx context.Context, sections []Section, embedder llm.Provider, cache *Cache, cfg Config, logger *slog.Logger) ([]types.SimilarityPair, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ids := make([]string, 0, len(sections))
	vectors := make(map[string][]float32, len(sections))
	jurisdictions := make(map[string]string, len(sections))

	var toEmbed []Section
	hits, misses := 0, 0
	for _, s := range sections {
		if s.ID == "" || s.Text == "" {
			continue
		}
		jurisdictions[s.ID] = s.Jurisdiction
		if vec, ok := cache.Get(s.ID); ok {
			vectors[s.ID] = vec
			ids = append(ids, s.ID)
			hits++
			continue
		}
		toEmbed = append(toEmbed, s)
	}

	const embedBatchSize = 32
	for i := 0; i < len(toEmbed); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(toEmbed) {
			end = len(toEmbed)
		}
		batch := toEmbed[i:end]
		texts := make([]string, len(batch))
		for j, s := range batch {
			texts[j] = s.Text
		}

		embeddings, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("ann: embedding batch starting at %d: %w", i, err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("ann: embedder returned %d vectors for %d inputs", len(embeddings), len(batch))
		}

		for j, s := range batch {
			vectors[s.ID] = embeddings[j]
			ids = append(ids, s.ID)
			misses++
			if err := cache.Put(s.ID, embeddings[j]); err != nil {
				return nil, fmt.Errorf("ann: caching embedding for %s: %w", s.ID, err)
			}
		}
	}
	if err := cache.Flush(); err != nil {
		return nil, fmt.Errorf("ann: final cache flush: %w", err)
	}
	logger.Info("embedding cache stats", "hits", hits, "misses", misses)

	if len(ids) == 0 {
		return nil, nil
	}

	var index Index
	if cfg.UseIVF {
		n := len(ids)
		nlist := isqrt(n)
		if nlist > 100 {
			nlist = 100
		}
		if nlist < 1 {
			nlist = 1
		}
		index = NewIVFIndex(nlist, cfg.IVFNProbe, cfg.IVFTrainSize)
	} else {
		index = NewFlatIndex()
	}

	sort.Strings(ids) // deterministic add order, independent of map iteration
	for _, id := range ids {
		index.Add(id, vectors[id])
	}
	index.Build()

	k := cfg.TopK + 1 // +1 accounts for the self-match every query returns
	if k > index.Len() {
		k = index.Len()
	}

	var pairs []types.SimilarityPair
	filtered := 0
	for _, idA := range ids {
		neighbors := index.Search(vectors[idA], k)
		for _, n := range neighbors {
			if n.ID == idA {
				continue
			}
			if n.Score < cfg.MinSimilarity {
				filtered++
				continue
			}
			if idA >= n.ID {
				continue // the reverse query will emit this pair in canonical order
			}
			score := n.Score
			if score > 1 {
				score = 1 // float error on normalized vectors can overshoot
			}
			pairs = append(pairs, types.SimilarityPair{
				Jurisdiction: jurisdictions[idA],
				SectionA:     idA,
				SectionB:     n.ID,
				Similarity:   score,
			})
		}
	}

	logger.Info("similarity computation complete",
		"pairs_written", len(pairs), "pairs_filtered", filtered, "sections", len(ids))
	return pairs, nil
}

func isqrt(n int) int {
	if n < 2 {
		return n
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
