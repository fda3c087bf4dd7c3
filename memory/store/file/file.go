// Package file provides JSON-file-backed implementations of the episodic and
// long-term tiers.
//
// Layout:
//   - episodic: one file per key under a storage directory, named by joining
//     the key components with "_" plus a ".json" suffix; content is an array
//     of event envelopes.
//   - long-term: a single JSON file mapping entity id to its record.
//
// Every write is a read-modify-write with atomic replace (temp file + rename).
// A single writer per key at a time is assumed: there is no cross-process
// locking, which is an accepted limitation, not a guarantee.
package file

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to path via a temp file in the same directory
// followed by a rename, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
