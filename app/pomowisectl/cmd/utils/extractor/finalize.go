package extractor

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
)

// Report is the outcome of a successful extraction.
type Report struct {
	Installed []string
	// Missing lists expected binaries that did not appear. Non-fatal.
	Missing []string
}

// Complete reports whether every expected binary is present.
func (r Report) Complete() bool {
	return len(r.Missing) == 0
}

// Finalizer turns a verified archive into installed binaries.
type Finalizer struct {
	extractor Extractor
	fs        filesystem.FileSystem
	windows   bool
	logger    *slog.Logger
}

func NewFinalizer(e Extractor, fs filesystem.FileSystem, windows bool, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{extractor: e, fs: fs, windows: windows, logger: logger}
}

// Finalize extracts archive into binDir, marks expected binaries executable
// (not on Windows) and removes the archive on every path.
//
// An extraction failure is returned as *ExtractionError. Expected binaries
// that are absent afterwards are listed in Report.Missing and do not cause an
// error.
func (f *Finalizer) Finalize(ctx context.Context, archive, binDir string, expected []string) (Report, error) {
	defer func() {
		if err := f.fs.RemoveFile(ctx, archive); err != nil {
			f.logger.Warn("Failed to remove archive", "path", archive, "error", err)
		}
	}()

	if err := f.fs.CreateDir(ctx, binDir, 0o755); err != nil {
		return Report{}, &ExtractionError{Archive: archive, Err: err}
	}

	if err := f.extractor.Extract(ctx, archive, binDir); err != nil {
		f.logger.Error("Extraction failed", "archive", archive, "error", err)
		return Report{}, err
	}

	var report Report
	for _, name := range expected {
		path := filepath.Join(binDir, name)
		ok, err := f.fs.CheckIfFileExists(ctx, path)
		if err != nil || !ok {
			report.Missing = append(report.Missing, name)
			continue
		}
		if !f.windows {
			if err := f.fs.Chmod(ctx, path, 0o755); err != nil {
				f.logger.Warn("Failed to mark binary executable", "path", path, "error", err)
			}
		}
		report.Installed = append(report.Installed, name)
	}

	if !report.Complete() {
		f.logger.Warn("Installation incomplete", "missing", report.Missing)
	}
	return report, nil
}
