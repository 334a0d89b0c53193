// Package storage holds what the repositories share: the not-found sentinel
// and the on-disk store for uploaded documents.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/giygas/protoscan/interfaces"
	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when an analysis does not exist
var ErrNotFound = errors.New("analysis not found")

var _ interfaces.UploadCleaner = (*Uploads)(nil)

// Uploads stores uploaded documents under generated names in one directory
type Uploads struct {
	dir string
}

// NewUploads creates the directory if needed
func NewUploads(dir string) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &Uploads{dir: dir}, nil
}

// Dir returns the upload directory
func (u *Uploads) Dir() string {
	return u.dir
}

// Save writes content under a random name keeping the original extension and
// returns the stored path. The client-supplied name never reaches the filesystem.
func (u *Uploads) Save(filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 8 {
		ext = ".bin"
	}

	path := filepath.Join(u.dir, uuid.NewString()+ext)
	if err := os.WriteFile(path, content, 0o640); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return path, nil
}

// Remove deletes a stored upload. Only paths inside the upload directory are
// accepted; a missing file is not an error.
func (u *Uploads) Remove(path string) error {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(u.dir) {
		return fmt.Errorf("refusing to remove %s outside the upload directory", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

// Cleanup removes regular files older than maxAge and returns how many were removed
func (u *Uploads) Cleanup(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(u.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read upload directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(u.dir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
