package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/entsync/entsync/pkg/types"
)

// Entry is one durable cache artifact: a JSON payload at a fixed path,
// exclusively owned by a single cache instance. Writes are atomic
// (temp file + rename); readers observe either the old or the new complete
// content. There is no locking beyond that.
type Entry struct {
	path string
}

// NewEntry creates an entry for the given path.
func NewEntry(path string) *Entry {
	return &Entry{path: path}
}

// Path returns the artifact's filesystem path.
func (e *Entry) Path() string {
	return e.path
}

// Exists reports whether the artifact is present on disk.
func (e *Entry) Exists() bool {
	info, err := os.Stat(e.path)
	return err == nil && !info.IsDir()
}

// Write persists the payload, replacing prior content atomically and
// creating the cache directory if needed.
func (e *Entry) Write(payload interface{}) error {
	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(e.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close cache %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod cache %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, e.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace cache %s: %w", e.path, err)
	}
	return nil
}

// Read decodes the artifact into out. Pull-style caches are rebuildable
// from the server, so an absent, empty or unparsable file reads as "no
// prior cache": ok is false and err is nil in all three cases.
func (e *Entry) Read(out interface{}) (ok bool, err error) {
	data, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache %s: %w", e.path, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, nil
	}
	return true, nil
}

// ReadRecord reads the artifact as a flat record.
func (e *Entry) ReadRecord() (types.Record, bool, error) {
	var rec types.Record
	ok, err := e.Read(&rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec, true, nil
}

// Delete removes the artifact. Deleting an absent artifact is a no-op.
func (e *Entry) Delete() error {
	err := os.Remove(e.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache %s: %w", e.path, err)
	}
	return nil
}
