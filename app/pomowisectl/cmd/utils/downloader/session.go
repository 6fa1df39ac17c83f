// Package downloader streams release archives to disk while hashing them,
// verifies the digest, and only then moves the file under its final name.
//
// The pieces are deliberately separate:
//   - Engine streams one URL into "<final>.tmp" and returns the SHA-256.
//   - Committer compares digests and either renames or deletes the temp file.
//   - Orchestrator runs checksum lookup, Engine and Committer as one unit and
//     retries that unit with exponential backoff.
//
// Nothing ever appears at the final path unless its digest matched.
package downloader

import (
	"fmt"

	"github.com/google/uuid"
)

// TempSuffix is appended to the final path while a transfer is in flight.
const TempSuffix = ".tmp"

// ProgressCallback is a function type used to report download progress.
// Arguments:
// - downloaded: Number of bytes written so far.
// - total: Total number of bytes announced by Content-Length.
// - percent: Download progress as a percentage (0.0 to 100.0).
//
// It is only invoked when the total is known. Percent never decreases within
// one Session.
type ProgressCallback func(downloaded, total int64, percent float64)

// Session holds the state of one transfer attempt.
// Every attempt gets a fresh Session; nothing is shared between attempts.
type Session struct {
	ID            string
	URL           string
	FinalPath     string
	TempPath      string
	BytesReceived int64
	// TotalBytes is -1 when the server sent no Content-Length.
	TotalBytes int64
}

// NewSession prepares a Session that streams url towards finalPath.
func NewSession(url, finalPath string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		URL:        url,
		FinalPath:  finalPath,
		TempPath:   finalPath + TempSuffix,
		TotalBytes: -1,
	}
}

// ChecksumMismatchError is returned when the computed digest differs from the
// published one. The temp file has already been removed when this is returned.
type ChecksumMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

// Error implements the error interface for ChecksumMismatchError.
func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}
