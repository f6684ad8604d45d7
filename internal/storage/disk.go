// Package storage persists photo backing bytes on local disk, addressed by
// storage key. Keys are slash-separated relative paths (e.g. "u/7/a_….jpg")
// and double as public URL suffixes.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"matcha/internal/logging"
)

// Disk is a file store rooted at a single directory.
type Disk struct {
	root string
	log  logging.Logger
}

// NewDisk creates the root directory if needed and returns the store.
func NewDisk(root string, log logging.Logger) (*Disk, error) {
	if root == "" || root == "/" {
		return nil, fmt.Errorf("unsafe storage root %q", root)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Disk{root: root, log: log}, nil
}

// Root returns the root directory, for static file serving.
func (d *Disk) Root() string { return d.root }

// Write stores data under key, creating parent directories.
func (d *Disk) Write(key string, data []byte) error {
	p := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Remove deletes the files for the given keys. It is fire-and-forget: a
// missing or undeletable file is logged and never reported as an error, so
// callers cannot be blocked by it.
func (d *Disk) Remove(keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		p := filepath.Join(d.root, filepath.FromSlash(key))
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			d.log.Warn("failed to remove backing file", "key", key, "error", err)
		}
	}
}

// ThumbKey derives the thumbnail key from a main storage key by inserting
// "_thumb" before the extension.
func (d *Disk) ThumbKey(key string) string {
	ext := filepath.Ext(key)
	return strings.TrimSuffix(key, ext) + "_thumb" + ext
}
