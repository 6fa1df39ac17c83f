package downloader

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
)

// Committer is the only component that renames or deletes temp files.
type Committer struct {
	fs     filesystem.FileSystem
	logger *slog.Logger
}

func NewCommitter(fs filesystem.FileSystem, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{fs: fs, logger: logger}
}

// Commit compares actual against expected, case-insensitively.
// On a match the temp file is renamed over s.FinalPath. On a mismatch it is
// deleted and a *ChecksumMismatchError is returned.
func (c *Committer) Commit(ctx context.Context, s *Session, actual, expected string) error {
	if !strings.EqualFold(actual, expected) {
		c.logger.Warn("Checksum mismatch, discarding download",
			"session", s.ID, "path", s.TempPath, "expected", expected, "actual", actual)
		if err := c.Discard(ctx, s); err != nil {
			c.logger.Error("Failed to remove temp file after mismatch", "path", s.TempPath, "error", err)
		}
		return &ChecksumMismatchError{
			Path:     s.FinalPath,
			Expected: strings.ToLower(expected),
			Actual:   strings.ToLower(actual),
		}
	}

	if err := c.fs.Rename(ctx, s.TempPath, s.FinalPath); err != nil {
		_ = c.Discard(ctx, s)
		return err
	}
	c.logger.Info("Checksum verified", "path", s.FinalPath)
	return nil
}

// Discard removes the temp file of s. A missing temp file is not an error.
func (c *Committer) Discard(ctx context.Context, s *Session) error {
	return c.fs.RemoveFile(ctx, s.TempPath)
}
