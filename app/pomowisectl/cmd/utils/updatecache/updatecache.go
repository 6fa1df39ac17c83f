// Package updatecache remembers the last latest-release lookup so that
// commands do not hit the GitHub API on every run.
package updatecache

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
)

const (
	CacheFileName = "update-cache.json"
	CacheDuration = 24 * time.Hour
)

// Entry is one cached lookup.
type Entry struct {
	Latest    string    `json:"latest"`
	URL       string    `json:"url,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
	// Source is "org/repo", so a changed release source invalidates the entry.
	Source string `json:"source"`
}

// Fresh reports whether e may be used for source at now.
func (e *Entry) Fresh(source string, now time.Time) bool {
	return e.Source == source && now.Sub(e.CheckedAt) < CacheDuration
}

type Cache struct {
	fs   filesystem.FileSystem
	path string
}

// New returns a cache stored in dir.
func New(fs filesystem.FileSystem, dir string) *Cache {
	return &Cache{fs: fs, path: filepath.Join(dir, CacheFileName)}
}

// Load returns the cached entry. A missing file yields (nil, nil).
func (c *Cache) Load(ctx context.Context) (*Entry, error) {
	exists, err := c.fs.CheckIfFileExists(ctx, c.path)
	if err != nil || !exists {
		return nil, err
	}
	data, err := c.fs.ReadFile(ctx, c.path)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse update cache: %w", err)
	}
	return &e, nil
}

// Save replaces the cached entry.
func (c *Cache) Save(ctx context.Context, e Entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	if err := c.fs.CreateDir(ctx, filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	return c.fs.WriteFile(ctx, c.path, data, 0o644)
}

// Clear removes the cache file.
func (c *Cache) Clear(ctx context.Context) error {
	return c.fs.RemoveFile(ctx, c.path)
}
