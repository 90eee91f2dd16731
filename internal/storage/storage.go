package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/maltedev/tramite-watcher/internal/models"
)

// StateStore keeps the last observed status. Save replaces the value as a
// whole; a failed Save leaves the previous value readable.
type StateStore interface {
	Load(ctx context.Context) (status string, found bool, err error)
	Save(ctx context.Context, status string) error
}

// FileStore keeps the status as a plain UTF-8 text file.
type FileStore struct {
	mu       sync.Mutex
	filename string
}

func NewFileStore(filename string) *FileStore {
	return &FileStore{filename: filename}
}

func (fs *FileStore) Path() string {
	return fs.filename
}

// Load reports found=false when the file does not exist or holds only whitespace.
func (fs *FileStore) Load(_ context.Context) (string, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: read %s: %w", models.ErrPersistence, fs.filename, err)
	}

	status := strings.TrimSpace(string(data))
	if status == "" {
		return "", false, nil
	}
	return status, true, nil
}

func (fs *FileStore) Save(_ context.Context, status string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.save(strings.TrimSpace(status)); err != nil {
		return fmt.Errorf("%w: write %s: %w", models.ErrPersistence, fs.filename, err)
	}
	return nil
}

// save writes a temp file in the target directory, syncs it and renames it
// over the old file so readers see either the old or the new value.
func (fs *FileStore) save(status string) error {
	dir := filepath.Dir(fs.filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fs.filename)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(status); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpName, fs.filename)
}
