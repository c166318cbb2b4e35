package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalStore keeps objects as files in a single directory.
type LocalStore struct {
	dir    string
	logger *slog.Logger
}

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(dir string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{
		dir:    abs,
		logger: logger.With(slog.String("component", "local_store")),
	}, nil
}

// Dir returns the absolute storage directory.
func (s *LocalStore) Dir() string { return s.dir }

// Put writes r to key. The object becomes visible only once fully written.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader) error {
	path, err := s.resolvePath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close object %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to commit object %s: %w", key, err)
	}

	s.logger.DebugContext(ctx, "stored object",
		slog.String("key", key),
		slog.Int64("size_bytes", n))
	return nil
}

// Get opens key for reading.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", key, err)
	}
	return f, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	s.logger.DebugContext(ctx, "deleted object", slog.String("key", key))
	return nil
}

// Exists reports whether key has an object.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return info.Mode().IsRegular(), nil
}

// List returns every object in the directory. Temporary files of
// in-flight writes are not listed.
func (s *LocalStore) List(ctx context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage dir: %w", err)
	}

	var out []ObjectInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() || ValidateKey(entry.Name()) != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, ObjectInfo{Key: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}

func (s *LocalStore) resolvePath(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key), nil
}
