package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalStorage keeps images in a directory served by the API under /images.
type LocalStorage struct {
	fs      afero.Fs
	dir     string
	baseURL string
}

// NewLocalStorage ensures dir exists on fs. baseURL is the externally visible API origin.
func NewLocalStorage(fs afero.Fs, dir, baseURL string) (*LocalStorage, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir %s: %w", dir, err)
	}

	return &LocalStorage{
		fs:      fs,
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir is the directory the router serves statically.
func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, key), data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", key, err)
	}

	return s.baseURL + imagePathSegment + key, nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	err := s.fs.Remove(filepath.Join(s.dir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image %s: %w", key, err)
	}
	return nil
}

func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, filepath.Join(s.dir, key))
}

func (s *LocalStorage) List(_ context.Context) ([]BlobInfo, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}

	blobs := make([]BlobInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || ValidateKey(entry.Name()) != nil {
			continue
		}
		blobs = append(blobs, BlobInfo{Key: entry.Name(), LastModified: entry.ModTime()})
	}
	return blobs, nil
}

func (s *LocalStorage) HealthCheck(_ context.Context) error {
	ok, err := afero.DirExists(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("stat image dir: %w", err)
	}
	if !ok {
		return fmt.Errorf("image dir %s is missing", s.dir)
	}
	return nil
}
