package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Static errors for storage operations.
var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrInvalidClipID is returned for IDs that would escape the store root.
	ErrInvalidClipID = errors.New("invalid clip id")
)

// LocalStorage implements ClipStore using local disk. As a Publisher it
// always fails with ErrS3NotConfigured.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a new LocalStorage instance rooted at root.
// If root is empty, "output" is used. The directory is created if it doesn't exist.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = "output"
	}

	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &LocalStorage{root: root}, nil
}

// ClipDir creates (if needed) and returns {root}/{clipID}.
func (s *LocalStorage) ClipDir(clipID string) (string, error) {
	if err := validateClipID(clipID); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, clipID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create clip directory: %w", err)
	}
	return dir, nil
}

// WriteArtifact writes data to a temporary file in the clip directory and
// renames it over name, so readers never observe a partial artifact.
func (s *LocalStorage) WriteArtifact(ctx context.Context, clipID, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	dir, err := s.ClipDir(clipID)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "."+name+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	tmpName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename %s: %w", name, err)
	}

	return path, nil
}

// Upload is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Upload(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// PublishFile opens path and uploads it under key.
func PublishFile(ctx context.Context, pub Publisher, key, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is produced by the chain builder
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return pub.Upload(ctx, key, f)
}

func validateClipID(clipID string) error {
	if clipID == "" || clipID == "." || clipID == ".." || strings.ContainsAny(clipID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidClipID, clipID)
	}
	return nil
}

// Compile-time checks.
var (
	_ ClipStore = (*LocalStorage)(nil)
	_ Publisher = (*LocalStorage)(nil)
)
