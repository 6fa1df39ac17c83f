// Package extractor unpacks a verified release archive into the install
// directory and finalizes the installed binaries.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/runner"
)

const (
	ModeNative  = "native"
	ModeBuiltin = "builtin"
)

// Extractor unpacks archive into destDir.
type Extractor interface {
	Extract(ctx context.Context, archive, destDir string) error
}

// ExtractionError wraps any failure to unpack an archive. It is fatal.
type ExtractionError struct {
	Archive string
	Err     error
}

// Error implements the error interface for ExtractionError.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.Archive, e.Err)
}

// Unwrap provides access to the underlying error.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// New returns the extractor for mode. An empty mode selects ModeNative.
func New(mode string, windows bool, r runner.Runner, logger *slog.Logger) (Extractor, error) {
	switch strings.ToLower(mode) {
	case "", ModeNative:
		return NewCommandExtractor(r, windows), nil
	case ModeBuiltin:
		return NewArchiveExtractor(logger), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q (expected %s or %s)", mode, ModeNative, ModeBuiltin)
	}
}
