package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ErrNotFound is returned when no submission file exists for an id.
var ErrNotFound = errors.New("submission file not found")

// Submission filenames are data_<unix-millis>.json; the timestamp token is
// the opaque id that appears in validation links.
var filenamePattern = regexp.MustCompile(`^data_\d+\.json$`)

// Store persists submission records as one JSON file each under a data
// directory. Writes are whole-file overwrites; a crash mid-write corrupts at
// most the single file being written.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	if dir == "" {
		dir = "data"
	}
	return &Store{Dir: dir}
}

// FilenameForID maps a timestamp token to its on-disk filename.
func FilenameForID(fileID string) string {
	return fmt.Sprintf("data_%s.json", fileID)
}

// ValidFilename reports whether name is a well-formed submission filename.
// Admin endpoints check this before touching the filesystem.
func ValidFilename(name string) bool {
	return filenamePattern.MatchString(name)
}

// WriteJSON marshals v and overwrites the named file, creating the data
// directory on first use.
func (s *Store) WriteJSON(filename string, v any) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, filename), data, 0644)
}

// ReadJSON unmarshals the named file into v, returning ErrNotFound when the
// file does not exist.
func (s *Store) ReadJSON(filename string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.Dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// Exists reports whether a submission file is present.
func (s *Store) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(s.Dir, filename))
	return err == nil
}
