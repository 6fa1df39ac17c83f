package extractor

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ArchiveExtractor unpacks tar.gz and zip archives in pure Go, with no
// external tools required. Entries that would land outside the destination
// directory are rejected.
type ArchiveExtractor struct {
	logger *slog.Logger
}

func NewArchiveExtractor(logger *slog.Logger) *ArchiveExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveExtractor{logger: logger}
}

// Extract implements Extractor. The format is chosen by file extension.
func (a *ArchiveExtractor) Extract(ctx context.Context, archive, destDir string) error {
	var err error
	if strings.HasSuffix(strings.ToLower(archive), ".zip") {
		err = a.extractZip(ctx, archive, destDir)
	} else {
		err = a.extractTarGz(ctx, archive, destDir)
	}
	if err != nil {
		return &ExtractionError{Archive: archive, Err: err}
	}
	return nil
}

func (a *ArchiveExtractor) extractTarGz(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			a.logger.Error("Failed to close archive file", "file", archivePath, "error", err)
		}
	}()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer func() {
		if err := gz.Close(); err != nil {
			a.logger.Error("Failed to close gzip reader", "file", archivePath, "error", err)
		}
	}()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := a.writeFile(target, tr, os.FileMode(hdr.Mode)&0o777); err != nil {
				return err
			}
		default:
			a.logger.Debug("Skipping archive entry", "name", hdr.Name, "type", hdr.Typeflag)
		}
	}
}

func (a *ArchiveExtractor) extractZip(ctx context.Context, archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			a.logger.Error("Failed to close zip archive", "file", archivePath, "error", err)
		}
	}()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		in, err := f.Open()
		if err != nil {
			return err
		}
		err = a.writeFile(target, in, f.Mode().Perm())
		if cErr := in.Close(); cErr != nil {
			a.logger.Error("Failed to close input file", "file", f.Name, "error", cErr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *ArchiveExtractor) writeFile(target string, src io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		if cErr := out.Close(); cErr != nil {
			a.logger.Error("Failed to close output file", "file", target, "error", cErr)
		}
		return err
	}
	return out.Close()
}

// safeJoin resolves name inside destDir and rejects entries that escape it.
func safeJoin(destDir, name string) (string, error) {
	cleanDest := filepath.Clean(destDir)
	target := filepath.Join(cleanDest, name)
	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	return target, nil
}
