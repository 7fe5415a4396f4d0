// Package local implements an ObjectStore on the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// Config captures the parameters for the filesystem store.
type Config struct {
	// BaseDir is the root directory objects are written under.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// PublicBaseURL prefixes keys in returned URLs. Empty yields file:// URLs.
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// ObjectStore writes screenshots beneath a base directory.
type ObjectStore struct {
	baseDir    string
	publicBase string
}

// New validates that BaseDir exists (creating it if needed) and is writable.
func New(cfg Config) (*ObjectStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &ObjectStore{baseDir: cfg.BaseDir, publicBase: cfg.PublicBaseURL}, nil
}

// PutObject writes body to BaseDir/key with owner-only permissions.
func (s *ObjectStore) PutObject(_ context.Context, key string, _ string, body io.Reader) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// MakePublic makes the file world-readable and returns its URL.
func (s *ObjectStore) MakePublic(_ context.Context, key string) (string, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.Chmod(fullPath, 0o644); err != nil { //nolint:gosec // published screenshots are meant to be readable
		return "", fmt.Errorf("make %s public: %w", key, err)
	}
	if s.publicBase == "" {
		return "file://" + fullPath, nil
	}
	return screenshot.PublicURL(s.publicBase, key), nil
}

func (s *ObjectStore) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	fullPath := filepath.Clean(filepath.Join(s.baseDir, key))
	if !strings.HasPrefix(fullPath, filepath.Clean(s.baseDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}
