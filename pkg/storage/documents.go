package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DocumentStore persists generated documents (certificates, report exports)
// on disk under a base directory.
type DocumentStore struct {
	baseDir string
}

// NewDocumentStore ensures the base directory exists and returns a handle.
func NewDocumentStore(baseDir string) (*DocumentStore, error) {
	if baseDir == "" {
		baseDir = "./documents"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents directory: %w", err)
	}
	return &DocumentStore{baseDir: baseDir}, nil
}

// Save writes the given bytes to the provided relative path under the base dir.
func (s *DocumentStore) Save(filename string, data []byte) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare document directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return filename, nil
}

// Open returns a read-only handle for the stored document.
func (s *DocumentStore) Open(filename string) (*os.File, error) {
	file, err := os.Open(s.resolve(filename))
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return file, nil
}

// CleanupOlderThan removes stored documents older than the TTL and
// returns the relative paths it deleted.
func (s *DocumentStore) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		return nil, nil
	}
	cutoff := time.Now().Add(-ttl)
	var removed []string
	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale document: %w", err)
		}
		rel, relErr := filepath.Rel(s.baseDir, path)
		if relErr != nil {
			rel = path
		}
		removed = append(removed, rel)
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cleanup documents: %w", err)
	}
	return removed, nil
}

// Path exposes the underlying absolute path.
func (s *DocumentStore) Path(filename string) string {
	return s.resolve(filename)
}

func (s *DocumentStore) resolve(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(s.baseDir, filename)
}
