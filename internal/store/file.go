package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileKV keeps one JSON file per key in a directory. Writes go through a
// temporary file and a rename so that a crash never leaves a torn snapshot.
type FileKV struct {
	dir string
	mu  sync.Mutex
}

// NewFileKV creates the directory if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file storage requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, filepath.Base(key)+".json")
}

// Get reads the file for key.
func (f *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, true, nil
}

// Set atomically replaces the file for key.
func (f *FileKV) Set(ctx context.Context, key string, value []byte) error {
	return f.SetMany(ctx, []Entry{{Key: key, Value: value}})
}

// SetMany writes every entry to a synced temporary file before renaming any
// of them into place, so a failed write leaves all keys untouched.
func (f *FileKV) SetMany(_ context.Context, entries []Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	temps := make([]string, 0, len(entries))
	defer func() {
		for _, name := range temps {
			_ = os.Remove(name)
		}
	}()

	for _, e := range entries {
		name, err := f.writeTemp(e.Key, e.Value)
		if err != nil {
			return err
		}
		temps = append(temps, name)
	}
	for i, e := range entries {
		if err := os.Rename(temps[i], f.path(e.Key)); err != nil {
			return fmt.Errorf("failed to replace %s: %w", e.Key, err)
		}
	}
	return nil
}

func (f *FileKV) writeTemp(key string, value []byte) (string, error) {
	tmp, err := os.CreateTemp(f.dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to close %s: %w", key, err)
	}
	return name, nil
}

// Close is a no-op.
func (f *FileKV) Close() error {
	return nil
}
