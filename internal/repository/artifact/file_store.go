package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"iconresolve/internal/safeio"
)

// FileStore keeps artifacts on local disk under <root>/<namespace>/<path>.
// The flat namespace maps onto the root itself, so local runs write straight
// to the configured output path.
type FileStore struct {
	fsys      *safeio.SafeFS
	flatSpace string
}

// NewFileStore roots the store at fsys. When flatNamespace is non-empty, that
// namespace maps directly onto the root instead of a subdirectory.
func NewFileStore(fsys *safeio.SafeFS, flatNamespace string) (*FileStore, error) {
	if fsys == nil {
		return nil, fmt.Errorf("filesystem is nil")
	}
	return &FileStore{fsys: fsys, flatSpace: flatNamespace}, nil
}

func (s *FileStore) Put(_ context.Context, namespace, path string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	namespace, path, err := normalize(namespace, path)
	if err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	return s.fsys.WriteFile(s.diskPath(namespace, path), content, 0o644)
}

func (s *FileStore) Get(_ context.Context, namespace, path string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	namespace, path, err := normalize(namespace, path)
	if err != nil {
		return nil, err
	}
	data, err := s.fsys.ReadFile(s.diskPath(namespace, path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *FileStore) List(_ context.Context, namespace string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	namespace, _, err := normalize(namespace, "-")
	if err != nil {
		return nil, err
	}
	dir := "."
	if namespace != s.flatSpace {
		dir = namespace
	}
	files, err := s.fsys.ListFiles(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	return files, nil
}

func (s *FileStore) diskPath(namespace, path string) string {
	if namespace == s.flatSpace {
		return filepath.FromSlash(path)
	}
	return filepath.Join(namespace, filepath.FromSlash(path))
}
