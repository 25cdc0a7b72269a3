// Package archive keeps durable copies of completed downloads.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const tempPrefix = ".incoming-"

// Store is a flat directory holding one file per display name. Writes are
// atomic renames, so concurrent saves of one name end with the last writer's
// complete file.
type Store struct {
	BaseDir string
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory %s: %w", dir, err)
	}
	return &Store{BaseDir: dir}, nil
}

// Path returns where name is stored.
func (s *Store) Path(name string) string {
	return filepath.Join(s.BaseDir, filepath.Base(name))
}

// Save copies src into the store under name and returns the stored path.
func (s *Store) Save(name, src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	tmp := filepath.Join(s.BaseDir, tempPrefix+uuid.New().String())
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to copy into archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to flush archive copy: %w", err)
	}

	dst := s.Path(name)
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move archive copy to %s: %w", dst, err)
	}
	return dst, nil
}

// Prune removes stored files, and abandoned partial copies, last modified
// before maxAge ago. It returns how many files were removed.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", s.BaseDir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.BaseDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
