package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/entsync/entsync/pkg/log"
	"github.com/entsync/entsync/pkg/types"
)

// Well-known system purpose attribute keys.
const (
	KeyRole         = "role"
	KeyAddons       = "addons"
	KeyServiceLevel = "service_level_agreement"
	KeyUsage        = "usage"
)

// Attributes lists every known system purpose attribute.
var Attributes = []string{KeyRole, KeyAddons, KeyServiceLevel, KeyUsage}

// LocalToRemote maps local attribute keys to the names the server uses.
var LocalToRemote = map[string]string{
	KeyRole:         "role",
	KeyAddons:       "addOns",
	KeyServiceLevel: "serviceLevel",
	KeyUsage:        "usage",
}

// MalformedDataError reports a backing file whose content is non-empty but
// not valid JSON. Unlike an absent or empty file, this is surfaced to the
// caller: discarding it silently could lose user edits.
type MalformedDataError struct {
	Path string
	Err  error
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("malformed data in %s; please review and correct", e.Path)
}

func (e *MalformedDataError) Unwrap() error {
	return e.Err
}

// Store loads and saves a flat record at a fixed filesystem path and tracks
// whether any mutation changed its contents since the last save.
type Store struct {
	path     string
	contents types.Record
	dirty    bool
	logger   zerolog.Logger
}

// Load reads the record at path. An absent or empty file yields an empty
// record; non-empty malformed content yields a *MalformedDataError.
func Load(path string) (*Store, error) {
	s := &Store{
		path:     path,
		contents: types.Record{},
		logger:   log.WithComponent("store"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file, replacing in-memory contents and
// clearing the dirty flag.
func (s *Store) Reload() error {
	s.contents = types.Record{}
	s.dirty = false

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	var rec types.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return &MalformedDataError{Path: s.path, Err: err}
	}
	if rec != nil {
		s.contents = rec
	}
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Contents returns a deep copy of the current record.
func (s *Store) Contents() types.Record {
	return s.contents.Clone()
}

// Replace swaps the full record for rec and marks the store dirty when the
// new contents differ.
func (s *Store) Replace(rec types.Record) bool {
	if s.contents.Equal(rec) {
		return false
	}
	s.contents = rec.Clone()
	s.dirty = true
	return true
}

// Save writes the full record to the backing file, replacing prior content.
// The write is atomic: a temp file in the target directory is renamed over
// the destination, so a crash mid-write leaves either the old or the new
// complete content. Clears the dirty flag on success.
func (s *Store) Save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(s.contents, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	s.dirty = false
	s.logger.Debug().Str("path", s.path).Msg("wrote record")
	return nil
}

// Dirty reports whether a mutation changed the record since the last save
// or reload.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Set assigns value to key. Returns whether the stored value changed.
func (s *Store) Set(key string, value interface{}) bool {
	old, existed := s.contents[key]
	s.contents[key] = types.CloneValue(value)
	changed := !existed || !types.ValueEqual(old, value)
	if changed {
		s.dirty = true
	}
	return changed
}

// Unset removes key from the record. Two keys deviate from plain removal to
// preserve the server's configured-empty versus absent distinction: the
// service level key is set to the empty string and the addons key to an
// empty list, both staying present. The store is marked dirty only when the
// contents actually changed. Returns whether a non-nil value existed.
func (s *Store) Unset(key string) bool {
	old, existed := s.contents[key]

	changed := false
	switch key {
	case KeyServiceLevel:
		if !existed || !types.ValueEqual(old, "") {
			s.contents[key] = ""
			changed = true
		}
	case KeyAddons:
		if !existed || !types.ValueEqual(old, []interface{}{}) {
			s.contents[key] = []interface{}{}
			changed = true
		}
	default:
		if existed {
			delete(s.contents, key)
			changed = true
		}
	}

	if changed {
		s.dirty = true
	}
	return existed && old != nil
}

// Add appends value to the list at key. A scalar already stored at key is
// promoted to a one-element list first; a nil value becomes an empty list.
// Returns false without modifying anything when the value is already
// present.
func (s *Store) Add(key string, value interface{}) bool {
	current, existed := s.contents[key]
	if !existed {
		s.contents[key] = []interface{}{types.CloneValue(value)}
		s.dirty = true
		return true
	}

	list := types.ToList(current)
	for _, item := range list {
		if types.ValueEqual(item, value) {
			// Promotion may still have changed the stored shape.
			s.contents[key] = list
			return false
		}
	}
	s.contents[key] = append(list, types.CloneValue(value))
	s.dirty = true
	return true
}

// Remove deletes value from the list at key. When the stored value is a
// scalar equal to value, this degrades to Unset. Returns whether anything
// was removed.
func (s *Store) Remove(key string, value interface{}) bool {
	current, existed := s.contents[key]
	if !existed || current == nil {
		return false
	}

	if !types.IsList(current) {
		if types.ValueEqual(current, value) {
			return s.Unset(key)
		}
		return false
	}

	list := types.ToList(current)
	for i, item := range list {
		if types.ValueEqual(item, value) {
			s.contents[key] = append(append([]interface{}{}, list[:i]...), list[i+1:]...)
			s.dirty = true
			return true
		}
	}
	return false
}
