// Package ann implements the semantic-similarity stage (S5): an
// on-disk embedding cache, a flat or IVF approximate-nearest-neighbor
// index over L2-normalized vectors, and pairwise similarity emission in
// canonical (section_a < section_b) order.
package ann

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Cache is a single binary key-value blob mapping section id to its
// embedding vector, replaced atomically on flush so a reader never
// observes a half-written file.
type Cache struct {
	mu       sync.Mutex
	path     string
	vectors  map[string][]float32
	dirty    int
	flushEvery int
}

// OpenCache loads path if it exists (an empty cache otherwise).
// flushEvery controls how many newly computed embeddings accumulate
// before Put triggers an automatic Flush.
func OpenCache(path string, flushEvery int) (*Cache, error) {
	if flushEvery <= 0 {
		flushEvery = 500
	}
	c := &Cache{path: path, vectors: map[string][]float32{}, flushEvery: flushEvery}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("ann: reading cache %s: %w", path, err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c.vectors); err != nil {
		return nil, fmt.Errorf("ann: decoding cache %s: %w", path, err)
	}
	return c, nil
}

// Get returns a cached embedding, if present.
func (c *Cache) Get(id string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vectors[id]
	return v, ok
}

// Put stores an embedding and flushes to disk once flushEvery new
// vectors have accumulated since the last flush.
func (c *Cache) Put(id string, vec []float32) error {
	c.mu.Lock()
	c.vectors[id] = vec
	c.dirty++
	shouldFlush := c.dirty >= c.flushEvery
	c.mu.Unlock()

	if shouldFlush {
		return c.Flush()
	}
	return nil
}

// Flush writes the full cache to disk atomically (write to a temp file
// in the same directory, then rename over the target).
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c.vectors); err != nil {
		return fmt.Errorf("ann: encoding cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ann: creating cache dir: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("ann: writing cache temp file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("ann: renaming cache into place: %w", err)
	}
	c.dirty = 0
	return nil
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vectors)
}
