// Package notes reads the shared notes file the agent maintains between
// iterations.
package notes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFile is the notes file name used when none is configured.
const DefaultFile = "SHARED_TASK_NOTES.md"

// Store resolves notes paths relative to a repository root.
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// BaseDir returns the root relative paths resolve against.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Path resolves path against the base directory.
func (s *Store) Path(path string) string {
	if path == "" {
		path = DefaultFile
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// Exists reports whether a regular file is present at path.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(s.Path(path))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the file contents verbatim.
func (s *Store) Read(path string) (string, error) {
	b, err := os.ReadFile(s.Path(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("notes %s: %w", path, err)
		}
		return "", fmt.Errorf("read notes %s: %w", path, err)
	}
	return string(b), nil
}

// Summary returns the first line of the notes for display, or "no notes yet".
func Summary(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return "no notes yet"
	}
	first := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	if r := []rune(first); len(r) > 60 {
		first = string(r[:57]) + "..."
	}
	return first
}
