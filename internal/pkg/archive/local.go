package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps audit exports on the local file system. Used when no
// bucket is configured (development, single-host deployments).
type LocalStore struct {
	basePath string
	baseURL  string
}

// NewLocalStore creates a file-system backed audit archive.
func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalStore{basePath: basePath, baseURL: baseURL}, nil
}

// Put writes an export to disk.
func (s *LocalStore) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	fullPath := filepath.Join(s.basePath, key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Exists checks whether an export is already archived.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// URL returns the retrieval URL for an archived export.
func (s *LocalStore) URL(key string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, key)
}
