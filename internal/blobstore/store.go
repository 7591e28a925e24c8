package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"lecturenote/internal/fileutil"
	"lecturenote/internal/services"
)

// ErrNotFound reports a missing object.
var ErrNotFound = fmt.Errorf("%w: object", services.ErrNotFound)

// Store is a filesystem-backed object store.
type Store struct {
	root string
}

// Open returns a store rooted at dir, creating it when missing.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "blobstore", "open", "root directory required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}
	return &Store{root: dir}, nil
}

// ValidateKey rejects empty, absolute and escaping keys.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty object key", services.ErrValidation)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: object key %q must be relative", services.ErrValidation, key)
	}
	if cleaned := path.Clean(key); cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return fmt.Errorf("%w: object key %q is not canonical", services.ErrValidation, key)
	}
	return nil
}

// Path returns the local file path backing key.
func (s *Store) Path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put streams r into key atomically and returns the bytes written.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	target, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("blobstore: ensure dir: %w", err)
	}
	n, err := fileutil.WriteStreamAtomic(target, r, 0o644)
	if err != nil {
		return n, fmt.Errorf("blobstore: put %s: %w", key, err)
	}
	return n, nil
}

// PutBytes stores data under key.
func (s *Store) PutBytes(ctx context.Context, key string, data []byte) error {
	target, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("blobstore: ensure dir: %w", err)
	}
	if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
		return fmt.Errorf("blobstore: put %s: %w", key, err)
	}
	return nil
}

// PutFile copies a local file into key.
func (s *Store) PutFile(ctx context.Context, key, src string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("blobstore: open source: %w", err)
	}
	defer file.Close()
	_, err = s.Put(ctx, key, file)
	return err
}

// Get opens key for reading.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("blobstore: open %s: %w", key, err)
	}
	return file, nil
}

// ReadAll returns the full contents of key.
func (s *Store) ReadAll(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Exists reports whether key holds a regular file.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	target, err := s.Path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("blobstore: stat %s: %w", key, err)
	}
	return info.Mode().IsRegular(), nil
}

// Delete removes key; a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	return nil
}
