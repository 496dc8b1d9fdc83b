package ndjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Reader streams records from an NDJSON file, resuming from a Checkpoint's
// byte offset and advancing it past every line it consumes.
// Malformed lines are logged and skipped rather than treated as fatal: a
// damaged trailing line from a prior crash shouldn't block the rest of
// the file.
type Reader struct {
	file *os.File
	br   *bufio.Reader
	cp   *Checkpoint
}

// OpenReader opens path and seeks to cp's byte offset, resetting the offset
// to 0 first if it is stale (beyond the file's current size).
func OpenReader(path string, cp *Checkpoint) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ndjson: opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ndjson: stat %s: %w", path, err)
	}
	resetIfStale(cp, info.Size())

	if cp.ByteOffset > 0 {
		if _, err := f.Seek(cp.ByteOffset, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("ndjson: seeking to offset %d: %w", cp.ByteOffset, err)
		}
		slog.Info("ndjson: resuming from checkpoint", "file", path, "offset", cp.ByteOffset)
	}

	return &Reader{file: f, br: bufio.NewReader(f), cp: cp}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Next decodes the next record into v, returning io.EOF (via the bool
// return) when the file is exhausted. It advances the checkpoint's byte
// offset past each line it consumes, a skipped malformed line included;
// it does not call Store.Save — callers decide
// when a checkpoint becomes durable (typically after processing and
// writing the resulting output).
func (r *Reader) Next(v any) (bool, error) {
	for {
		line, err := r.br.ReadBytes('\n')
		atEOF := err != nil

		trimmed := trimNewline(line)
		if len(trimmed) == 0 {
			if atEOF {
				return false, nil
			}
			continue
		}

		offsetBefore := r.cp.ByteOffset
		r.cp.ByteOffset += int64(len(line))

		if jsonErr := json.Unmarshal(trimmed, v); jsonErr != nil {
			slog.Error("ndjson: malformed line, skipping",
				"offset", offsetBefore, "error", jsonErr)
			if atEOF {
				return false, nil
			}
			continue
		}

		return true, nil
	}
}

func trimNewline(b []byte) []byte {
	n := len(b)
	for n > 0 && (b[n-1] == '\n' || b[n-1] == '\r') {
		n--
	}
	return b[:n]
}
