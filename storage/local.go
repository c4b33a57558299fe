package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore keeps blobs as files below a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory when it does not exist yet.
func NewLocalStore(root string) (*LocalStore, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: absRoot}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

// resolvePath maps a relative blob path into root, rejecting escapes.
func (s *LocalStore) resolvePath(relPath string) (string, error) {
	relPath = filepath.Clean(filepath.FromSlash(relPath))
	if relPath == "." || relPath == "" || filepath.IsAbs(relPath) {
		return "", ErrInvalidPath
	}

	fullPath := filepath.Join(s.root, relPath)
	rel, err := filepath.Rel(s.root, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return fullPath, nil
}

func (s *LocalStore) Put(ctx context.Context, path string, r io.Reader) error {
	fullPath, err := s.resolvePath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}

	tempPath := fullPath + "." + uuid.NewString() + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(file, r)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tempPath)
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(tempPath)
		return closeErr
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}

func (s *LocalStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, mapError(err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, mapError(err)
	}
	return file, nil
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	fullPath, err := s.resolvePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	fullPath, err := s.resolvePath(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func mapError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
