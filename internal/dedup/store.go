package dedup

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveMap writes merged as one binary blob (section id -> canonical id),
// atomically replacing any file already at path via the same
// write-temp-then-rename convention internal/ann.Cache uses, so a reader
// never observes a half-written file.
func SaveMap(path string, merged map[string]string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(merged); err != nil {
		return fmt.Errorf("dedup: encoding map: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dedup: creating directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("dedup: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("dedup: renaming into place: %w", err)
	}
	return nil
}

// LoadMap reads a map written by SaveMap, returning an empty map if path
// does not yet exist.
func LoadMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("dedup: reading map %s: %w", path, err)
	}
	merged := map[string]string{}
	if len(data) == 0 {
		return merged, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&merged); err != nil {
		return nil, fmt.Errorf("dedup: decoding map %s: %w", path, err)
	}
	return merged, nil
}

// SaveStats writes stats as a human-readable dedup_stats.json report,
// rather than the binary blob format SaveMap uses for the map itself.
// Nothing downstream reads it back.
func SaveStats(path string, stats Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("dedup: encoding stats: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("dedup: writing stats %s: %w", path, err)
	}
	return nil
}
