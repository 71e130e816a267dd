package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore persists generated job artifacts under a single root directory.
// Every write lands atomically so readers never observe a partial file.
type FileStore struct {
	basePath     string
	publicPrefix string
}

// NewFileStore initializes a FileStore rooted at basePath. publicPrefix is the
// URL prefix under which basePath is served, e.g. "/generated".
func NewFileStore(basePath, publicPrefix string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	publicPrefix = "/" + strings.Trim(strings.TrimSpace(publicPrefix), "/")
	return &FileStore{basePath: basePath, publicPrefix: publicPrefix}, nil
}

// Path maps a relative key onto the filesystem.
func (s *FileStore) Path(key string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

// PublicPath returns the URL path a client uses to fetch key.
func (s *FileStore) PublicPath(key string) string {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return ""
	}
	return path.Join(s.publicPrefix, cleanKey)
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key. Keys are cleaned to prevent directory traversal.
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
	if err := writeAtomic(fullPath, data); err != nil {
		return "", err
	}
	return cleanKey, nil
}

// WriteJSON marshals v as indented JSON and writes it atomically.
func (s *FileStore) WriteJSON(ctx context.Context, key string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("storage: marshal %s: %w", key, err)
	}
	return s.Write(ctx, key, append(data, '\n'))
}

// ReadFile returns the bytes stored at key.
func (s *FileStore) ReadFile(key string) ([]byte, error) {
	full, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Exists reports whether a regular file is stored at key.
func (s *FileStore) Exists(key string) bool {
	full, err := s.Path(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// writeAtomic writes to a sibling temp file, syncs it and renames it over the
// destination. The temp file is removed on any failure.
func writeAtomic(fullPath string, data []byte) (err error) {
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmpPath := filepath.Join(dir, "."+filepath.Base(fullPath)+".tmp-"+uuid.NewString())
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("storage: sync file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("storage: close file: %w", err)
	}
	if err = os.Rename(tmpPath, fullPath); err != nil {
		return fmt.Errorf("storage: rename into place: %w", err)
	}
	return nil
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
