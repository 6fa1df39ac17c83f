// Package installmeta records what was installed under the install root, so a
// later run can tell whether the requested version is already in place.
package installmeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
)

const (
	// META_FILENAME is the name of the JSON file kept in the install root.
	META_FILENAME = "install.json"

	SourceRelease = "release"
	SourceBuild   = "source"
)

// ErrNotInstalled is returned by Load when no record exists.
var ErrNotInstalled = errors.New("pomowise is not installed")

// Record holds the details of the current installation.
type Record struct {
	Version     string    `json:"version"`
	Triple      string    `json:"triple,omitempty"`
	Source      string    `json:"source"`
	Binaries    []string  `json:"binaries"`
	SHA256      string    `json:"sha256,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
}

// Store defines the operations on the install record.
type Store interface {
	// Load returns the current record, or ErrNotInstalled when there is none.
	Load(ctx context.Context) (*Record, error)

	// Save replaces the record. The file is written through a temp file and a rename.
	Save(ctx context.Context, rec Record) error

	// Delete removes the record. A missing record is not an error.
	Delete(ctx context.Context) error

	// Path returns the absolute path of the record file.
	Path() string
}

type storeImpl struct {
	fs   filesystem.FileSystem
	path string
}

// New creates a Store for the install root. Nothing is touched on disk until Save.
func New(fs filesystem.FileSystem, installRoot string) Store {
	return &storeImpl{
		fs:   fs,
		path: filepath.Join(installRoot, META_FILENAME),
	}
}

func (s *storeImpl) Path() string {
	return s.path
}

// Load implements the Store interface.
func (s *storeImpl) Load(ctx context.Context) (*Record, error) {
	exists, err := s.fs.CheckIfFileExists(ctx, s.path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotInstalled
	}

	data, err := s.fs.ReadFile(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read install record: %w", err)
	}
	// An empty file means a previous write never finished.
	if len(data) == 0 {
		return nil, ErrNotInstalled
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal install record from %s: %w", s.path, err)
	}
	return &rec, nil
}

// Save implements the Store interface.
func (s *storeImpl) Save(ctx context.Context, rec Record) error {
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = time.Now().UTC()
	}

	// Marshal with indentation to make the file human-readable for debugging.
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal install record: %w", err)
	}

	if err := s.fs.CreateDir(ctx, filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := s.fs.WriteFile(ctx, tmp, data, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(ctx, tmp, s.path)
}

// Delete implements the Store interface.
func (s *storeImpl) Delete(ctx context.Context) error {
	return s.fs.RemoveFile(ctx, s.path)
}
