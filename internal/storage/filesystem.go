package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"imageservice/internal/domain"
)

// ImagesDir is the flat default directory under the store root. Provider
// scoped subdirectories live beneath it.
const ImagesDir = "images"

// ErrExists is returned when a write targets a key that is already taken.
// The store never overwrites artifacts.
var ErrExists = errors.New("storage: artifact already exists")

// FileStore persists artifacts onto the local filesystem. From the
// orchestrator's point of view the tree is append-only: files are created
// under unique names and never rewritten or removed.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if abs, err := filepath.Abs(basePath); err == nil {
		basePath = abs
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// ProviderKey returns the storage key of an image file inside a provider's
// subdirectory.
func ProviderKey(provider, fileName string) string {
	return ImagesDir + "/" + provider + "/" + fileName
}

// Write persists the provided bytes at the given relative key and returns the
// absolute path of the created file. Missing directories are created. Keys are
// cleaned to prevent directory traversal, and an existing file is never
// replaced.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, cleanKey)
		}
		return "", fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	return fullPath, nil
}

// Locate finds a previously materialized artifact by bare file name. The
// search order is fixed: the flat images directory, then each provider's
// subdirectory in the given order, then a recursive walk of the whole store.
func (s *FileStore) Locate(name string, providers []string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	name = strings.TrimSpace(name)
	if !validFileName(name) {
		return "", fmt.Errorf("%w: %q", domain.ErrArtifactNameInvalid, name)
	}

	imagesRoot := filepath.Join(s.basePath, ImagesDir)
	if p := filepath.Join(imagesRoot, name); isRegularFile(p) {
		return p, nil
	}
	for _, provider := range providers {
		if !validFileName(provider) {
			continue
		}
		if p := filepath.Join(imagesRoot, provider, name); isRegularFile(p) {
			return p, nil
		}
	}

	var found string
	errFound := errors.New("found")
	walkErr := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped rather than aborting the search.
			if d != nil && d.IsDir() && path != s.basePath {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return errFound
		}
		return nil
	})
	if found != "" {
		return found, nil
	}
	if walkErr != nil && !errors.Is(walkErr, errFound) {
		return "", fmt.Errorf("storage: search artifacts: %w", walkErr)
	}
	return "", fmt.Errorf("%w: artifact %q", domain.ErrNotFound, name)
}

func validFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
