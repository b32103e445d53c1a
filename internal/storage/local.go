package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps each namespace as a directory under a root.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the store directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) dir(namespace string) string {
	return filepath.Join(s.root, filepath.FromSlash(namespace))
}

func (s *LocalStore) file(namespace, path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.dir(namespace), clean), nil
}

func (s *LocalStore) Exists(ctx context.Context, namespace string) (bool, error) {
	info, err := os.Stat(s.dir(namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (s *LocalStore) Ensure(ctx context.Context, namespace string) error {
	return os.MkdirAll(s.dir(namespace), 0o755)
}

func (s *LocalStore) List(ctx context.Context, namespace, pattern string) ([]string, error) {
	base := s.dir(namespace)
	if ok, err := s.Exists(ctx, namespace); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("namespace %s: %w", namespace, ErrNotFound)
	}

	var paths []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", base, err)
	}
	return filterSorted(paths, pattern), nil
}

func (s *LocalStore) Get(ctx context.Context, namespace, path string) ([]byte, error) {
	file, err := s.file(namespace, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", namespace, path, ErrNotFound)
	}
	return data, err
}

func (s *LocalStore) Put(ctx context.Context, namespace, path string, data []byte) error {
	file, err := s.file(namespace, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(file), err)
	}
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return os.Rename(tmp, file)
}
