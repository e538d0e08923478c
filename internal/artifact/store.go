// Package artifact provides the checkpoint store the pipeline writes after
// every unit of work: a full-replace, create-if-absent file write that a
// concurrent reader can never observe half-written.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store writes named artifacts inside a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path of a named artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Write replaces the named artifact's content. The write goes to a temp file
// in the same directory and is renamed into place, so readers see either the
// previous content or the new content, never a partial file.
func (s *Store) Write(name string, content []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace artifact %s: %w", name, err)
	}
	return nil
}

// WriteString replaces the named artifact's content with a string.
func (s *Store) WriteString(name, content string) error {
	return s.Write(name, []byte(content))
}

// Read returns the named artifact's content.
func (s *Store) Read(name string) ([]byte, error) {
	return os.ReadFile(s.Path(name))
}

// Exists reports whether the named artifact is present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// FirstExisting returns the first artifact name from the list that is
// present, or an empty string if none are. Downstream stages use this to
// locate upstream output in priority order.
func (s *Store) FirstExisting(names ...string) string {
	for _, name := range names {
		if s.Exists(name) {
			return name
		}
	}
	return ""
}
