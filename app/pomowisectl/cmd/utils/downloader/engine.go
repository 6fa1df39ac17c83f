package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/fetcher"
)

const defaultChunkSize = 32 << 10

type EngineOption func(*Engine)

func WithProgressCallback(cb ProgressCallback) EngineOption {
	return func(e *Engine) {
		e.progress = cb
	}
}

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithChunkSize sets the read buffer size. Mostly useful in tests.
func WithChunkSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// Engine streams a response body into a Session's temp file while hashing it.
type Engine struct {
	fetcher   fetcher.Fetcher
	progress  ProgressCallback
	chunkSize int
	logger    *slog.Logger
}

func NewEngine(f fetcher.Fetcher, opts ...EngineOption) *Engine {
	e := &Engine{
		fetcher:   f,
		chunkSize: defaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stream downloads s.URL into s.TempPath and returns the lowercase hex SHA-256.
//
// Each chunk is folded into the hash before it is written, so the digest
// always covers exactly the bytes on disk. On any error the temp file is
// closed but left in place; removing it is the Committer's job.
func (e *Engine) Stream(ctx context.Context, s *Session) (string, error) {
	resp, err := e.fetcher.Get(ctx, s.URL)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			e.logger.Error("Failed to close response body", "url", s.URL, "error", err)
		}
	}()

	s.TotalBytes = resp.ContentLength

	if err := os.MkdirAll(filepath.Dir(s.TempPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	file, err := os.OpenFile(s.TempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	e.logger.Debug("Streaming download", "session", s.ID, "url", s.URL, "path", s.TempPath, "total", s.TotalBytes)

	hasher := sha256.New()
	if err := e.copy(ctx, s, file, resp.Body, hasher); err != nil {
		if cErr := file.Close(); cErr != nil {
			e.logger.Error("Failed to close temp file", "path", s.TempPath, "error", cErr)
		}
		return "", err
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	e.logger.Debug("Download streamed", "session", s.ID, "bytes", s.BytesReceived, "sha256", digest)
	return digest, nil
}

func (e *Engine) copy(ctx context.Context, s *Session, dst io.Writer, src io.Reader, hasher io.Writer) error {
	buf := make([]byte, e.chunkSize)
	lastPercent := -1.0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			// hash.Hash.Write never returns an error
			_, _ = hasher.Write(chunk)
			if _, err := dst.Write(chunk); err != nil {
				return fmt.Errorf("failed to write temp file: %w", err)
			}
			s.BytesReceived += int64(n)

			if e.progress != nil && s.TotalBytes > 0 {
				percent := float64(s.BytesReceived) / float64(s.TotalBytes) * 100
				if percent > 100 {
					percent = 100
				}
				if percent >= lastPercent {
					lastPercent = percent
					e.progress(s.BytesReceived, s.TotalBytes, percent)
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read response body: %w", readErr)
		}
	}
}
