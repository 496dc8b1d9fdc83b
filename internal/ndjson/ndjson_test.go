package ndjson

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func TestWriterAppendsAndNeverTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ndjson")

	w, err := OpenWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(testRecord{ID: "a", Text: "first"}))
	require.NoError(t, w.Close())

	w2, err := OpenWriter(path)
	require.NoError(t, err)
	require.NoError(t, w2.Write(testRecord{ID: "b", Text: "second"}))
	require.NoError(t, w2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"id":"a"`)
	require.Contains(t, string(data), `"id":"b"`)
}

func TestWriterPreservesNonASCII(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ndjson")

	w, err := OpenWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(testRecord{ID: "c", Text: "café §123"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "café §123")
	require.NotContains(t, string(data), `\u00e9`)
}

func TestReaderResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.ndjson")

	w, err := OpenWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(testRecord{ID: "a"}))
	require.NoError(t, w.Write(testRecord{ID: "b"}))
	require.NoError(t, w.Write(testRecord{ID: "c"}))
	require.NoError(t, w.Close())

	cp := NewCheckpoint()
	r, err := OpenReader(path, cp)
	require.NoError(t, err)

	var rec testRecord
	ok, err := r.Next(&rec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", rec.ID)
	require.NoError(t, r.Close())

	// Resume from the checkpoint left after reading "a".
	r2, err := OpenReader(path, cp)
	require.NoError(t, err)
	defer r2.Close()

	ok, err = r2.Next(&rec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", rec.ID)
}

func TestReaderResetsStaleCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.ndjson")

	w, err := OpenWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(testRecord{ID: "a"}))
	require.NoError(t, w.Close())

	cp := NewCheckpoint()
	cp.ByteOffset = 10_000 // far beyond the file's actual size

	r, err := OpenReader(path, cp)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, int64(0), cp.ByteOffset)

	var rec testRecord
	ok, err := r.Next(&rec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", rec.ID)
}

func TestReaderSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.ndjson")

	require.NoError(t, os.WriteFile(path, []byte("{\"id\":\"a\"}\nnot json\n{\"id\":\"b\"}\n"), 0o644))

	cp := NewCheckpoint()
	r, err := OpenReader(path, cp)
	require.NoError(t, err)
	defer r.Close()

	var ids []string
	var rec testRecord
	for {
		ok, err := r.Next(&rec)
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, rec.ID)
	}
	require.Equal(t, []string{"a", "b"}, ids)
}

func TestCheckpointStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	store := NewStore(path)
	cp, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, int64(0), cp.ByteOffset)

	cp.ByteOffset = 42
	cp.Incr("inserted", 5)
	cp.Skip("dc-1-101")
	require.NoError(t, store.Save(cp))

	reloaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, int64(42), reloaded.ByteOffset)
	require.Equal(t, 5, reloaded.Counters["inserted"])
	require.True(t, reloaded.IsProcessed("dc-1-101"))
}
