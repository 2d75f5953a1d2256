// Package pkgstore provides filesystem-backed storage for skill package
// blobs.
package pkgstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Dir stores package blobs under a root directory. Paths handed to Stat are
// relative to the root.
type Dir struct {
	root string
}

// New creates a package store rooted at dir, creating it if needed.
func New(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create package dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Stat returns the size and hex sha256 checksum of a stored package.
func (d *Dir) Stat(_ context.Context, path string) (int64, string, error) {
	full, err := d.resolve(path)
	if err != nil {
		return 0, "", err
	}

	f, err := os.Open(full)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open package: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read package: %w", err)
	}

	return size, hex.EncodeToString(h.Sum(nil)), nil
}

// Put stores a package blob and returns its size and checksum.
func (d *Dir) Put(_ context.Context, path string, r io.Reader) (int64, string, error) {
	full, err := d.resolve(path)
	if err != nil {
		return 0, "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, "", fmt.Errorf("failed to create package subdir: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create package file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		return 0, "", fmt.Errorf("failed to write package: %w", err)
	}

	return size, hex.EncodeToString(h.Sum(nil)), nil
}

// resolve joins path under the root, rejecting traversal outside it.
func (d *Dir) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid package path %q", path)
	}
	return filepath.Join(d.root, clean), nil
}
