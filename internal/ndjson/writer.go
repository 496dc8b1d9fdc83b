package ndjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writer appends one JSON object per line to an NDJSON file, flushing after
// every write. It never truncates its target: opening an existing file
// resumes appending where a prior run left off. Close is idempotent.
type Writer struct {
	file   *os.File
	bw     *bufio.Writer
	closed bool
}

// OpenWriter opens path for append, creating it and any parent directories
// as needed.
func OpenWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ndjson: creating directory for %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ndjson: opening %s for append: %w", path, err)
	}
	return &Writer{file: f, bw: bufio.NewWriter(f)}, nil
}

// Write marshals record as JSON (without HTML-escaping, so non-ASCII text
// round-trips literally) and appends it as one line, flushing immediately.
func (w *Writer) Write(record any) error {
	var buf []byte
	enc := json.NewEncoder(sliceWriter{&buf})
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("ndjson: encoding record: %w", err)
	}
	if _, err := w.bw.Write(buf); err != nil {
		return fmt.Errorf("ndjson: writing record: %w", err)
	}
	return w.bw.Flush()
}

// Close flushes and closes the underlying file. Calling Close more than
// once is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.bw.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("ndjson: final flush: %w", err)
	}
	return w.file.Close()
}

// sliceWriter lets json.Encoder write into a byte slice without an extra
// bytes.Buffer allocation dance.
type sliceWriter struct{ buf *[]byte }

func (s sliceWriter) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}
