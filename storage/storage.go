// Package storage persists report artifacts (JSON reports and screenshots) to the local
// filesystem or S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrFileNotFound is returned when a requested artifact does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidPath is returned when a path is empty, absolute or escapes the store root.
	ErrInvalidPath = errors.New("invalid path")
)

// Object describes one stored artifact.
type Object struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// BlobStorage stores artifacts under slash-separated relative paths.
type BlobStorage interface {
	// Write stores data at path, replacing any existing artifact.
	Write(ctx context.Context, path string, data []byte) error

	// Read returns the artifact at path or ErrFileNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether an artifact is stored at path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns every artifact whose path starts with prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Location returns where path lives, as a filesystem path or s3:// URI.
	Location(path string) string
}

// Config selects and configures a BlobStorage.
type Config struct {
	Type    string // "local" or "s3"
	BaseDir string
	Bucket  string
	Region  string
	Prefix  string
}

// New creates a BlobStorage from cfg.
func New(ctx context.Context, cfg Config) (BlobStorage, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "local":
		if cfg.BaseDir == "" {
			return nil, fmt.Errorf("base directory is required for local storage")
		}
		return NewLocalStorage(cfg.BaseDir)

	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for S3 storage")
		}
		if cfg.Region == "" {
			return nil, fmt.Errorf("region is required for S3 storage")
		}
		s3Storage, err := NewS3Storage(ctx, cfg.Bucket, cfg.Region, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return s3Storage, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// Dirs returns the distinct first path segments of objects, in sorted order.
func Dirs(objects []Object) []string {
	seen := map[string]bool{}
	var out []string
	for _, o := range objects {
		dir, _, found := strings.Cut(o.Path, "/")
		if !found || seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}

// cleanKey normalizes p to a relative slash path and rejects traversal.
func cleanKey(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}
	p = filepath.ToSlash(p)
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: absolute paths not allowed", ErrInvalidPath)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: path traversal detected", ErrInvalidPath)
	}
	return clean, nil
}
