package filesystem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// FileSystem defines the file and directory operations the installer performs.
type FileSystem interface {
	// CreateDir creates a directory and any missing parents.
	// If the directory already exists, it returns nil.
	CreateDir(ctx context.Context, path string, perm os.FileMode) error

	// WriteFile writes content to path, creating or truncating it.
	WriteFile(ctx context.Context, path string, content []byte, perm os.FileMode) error

	// ReadFile returns the content of path.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// CheckIfFileExists reports whether path exists and is a regular file.
	// A directory at path is an error.
	CheckIfFileExists(ctx context.Context, path string) (bool, error)

	// RemoveFile deletes a single file. A missing file is not an error.
	RemoveFile(ctx context.Context, path string) error

	// RemoveDir deletes a directory tree. A missing directory is not an error.
	RemoveDir(ctx context.Context, path string) error

	// Rename atomically replaces dst with src.
	// Both paths must be on the same volume; there is no copy fallback.
	Rename(ctx context.Context, src, dst string) error

	// CopyFileAtomic copies src to dst through "dst.tmp" and a rename,
	// so readers of dst never observe a partial file.
	CopyFileAtomic(ctx context.Context, src, dst string, perm os.FileMode) error

	// Chmod changes the mode of path.
	Chmod(ctx context.Context, path string, perm os.FileMode) error
}

// fileSystemImpl implements the FileSystem interface.
type fileSystemImpl struct {
	logger *slog.Logger
}

// New creates a FileSystem that logs through logger.
// A nil logger falls back to slog.Default().
func New(logger *slog.Logger) FileSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileSystemImpl{logger: logger}
}

// CreateDir implements the CreateDir method of the FileSystem interface.
func (fs *fileSystemImpl) CreateDir(ctx context.Context, path string, perm os.FileMode) error {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Creating directory", "path", cleanPath, "perm", perm)

	if err := os.MkdirAll(cleanPath, perm); err != nil {
		fs.logger.ErrorContext(ctx, "Failed to create directory", "path", cleanPath, "error", err)
		return fmt.Errorf("failed to create directory %s: %w", cleanPath, err)
	}
	return nil
}

// WriteFile implements the WriteFile method of the FileSystem interface.
func (fs *fileSystemImpl) WriteFile(ctx context.Context, path string, content []byte, perm os.FileMode) error {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Writing to file", "path", cleanPath, "perm", perm)

	if err := os.WriteFile(cleanPath, content, perm); err != nil {
		fs.logger.ErrorContext(ctx, "Failed to write to file", "path", cleanPath, "error", err)
		return fmt.Errorf("failed to write to file %s: %w", cleanPath, err)
	}
	return nil
}

// ReadFile implements the ReadFile method of the FileSystem interface.
func (fs *fileSystemImpl) ReadFile(ctx context.Context, path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Reading file", "path", cleanPath)

	content, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", cleanPath, err)
	}
	return content, nil
}

// CheckIfFileExists implements the CheckIfFileExists method of the FileSystem interface.
func (fs *fileSystemImpl) CheckIfFileExists(ctx context.Context, path string) (bool, error) {
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			fs.logger.DebugContext(ctx, "File does not exist", "path", cleanPath)
			return false, nil
		}
		fs.logger.ErrorContext(ctx, "Failed to check file existence", "path", cleanPath, "error", err)
		return false, fmt.Errorf("failed to check file existence %s: %w", cleanPath, err)
	}

	if info.IsDir() {
		return false, fmt.Errorf("path %s is a directory, not a file", cleanPath)
	}
	return true, nil
}

// RemoveFile implements the RemoveFile method of the FileSystem interface.
func (fs *fileSystemImpl) RemoveFile(ctx context.Context, path string) error {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Removing file", "path", cleanPath)

	if err := os.Remove(cleanPath); err != nil {
		if os.IsNotExist(err) {
			fs.logger.DebugContext(ctx, "File does not exist, nothing to remove", "path", cleanPath)
			return nil
		}
		fs.logger.ErrorContext(ctx, "Failed to remove file", "path", cleanPath, "error", err)
		return fmt.Errorf("failed to remove file %s: %w", cleanPath, err)
	}
	return nil
}

// RemoveDir implements the RemoveDir method of the FileSystem interface.
func (fs *fileSystemImpl) RemoveDir(ctx context.Context, path string) error {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Removing directory", "path", cleanPath)

	if err := os.RemoveAll(cleanPath); err != nil {
		fs.logger.ErrorContext(ctx, "Failed to remove directory", "path", cleanPath, "error", err)
		return fmt.Errorf("failed to remove directory %s: %w", cleanPath, err)
	}

	fs.logger.InfoContext(ctx, "Directory removed", "path", cleanPath)
	return nil
}

// Rename implements the Rename method of the FileSystem interface.
func (fs *fileSystemImpl) Rename(ctx context.Context, src, dst string) error {
	cleanSrc := filepath.Clean(src)
	cleanDst := filepath.Clean(dst)
	fs.logger.DebugContext(ctx, "Renaming file", "from", cleanSrc, "to", cleanDst)

	if err := os.Rename(cleanSrc, cleanDst); err != nil {
		fs.logger.ErrorContext(ctx, "Failed to rename file", "from", cleanSrc, "to", cleanDst, "error", err)
		return fmt.Errorf("failed to rename %s to %s: %w", cleanSrc, cleanDst, err)
	}
	return nil
}

// CopyFileAtomic implements the CopyFileAtomic method of the FileSystem interface.
func (fs *fileSystemImpl) CopyFileAtomic(ctx context.Context, src, dst string, perm os.FileMode) error {
	cleanSrc := filepath.Clean(src)
	cleanDst := filepath.Clean(dst)
	fs.logger.DebugContext(ctx, "Copying file", "from", cleanSrc, "to", cleanDst)

	if err := os.MkdirAll(filepath.Dir(cleanDst), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}

	sf, err := os.Open(cleanSrc)
	if err != nil {
		return fmt.Errorf("open src: %w", err)
	}
	defer func() {
		if err := sf.Close(); err != nil {
			fs.logger.ErrorContext(ctx, "Failed to close source file", "path", cleanSrc, "error", err)
		}
	}()

	tmp := cleanDst + ".tmp"
	df, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("create temp dst: %w", err)
	}

	if _, err := io.Copy(df, sf); err != nil {
		_ = df.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("copy data: %w", err)
	}
	if err := df.Sync(); err != nil {
		_ = df.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync dst: %w", err)
	}
	if err := df.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close dst: %w", err)
	}

	// OpenFile honours umask; make the final mode exact.
	if err := os.Chmod(tmp, perm); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("chmod temp dst: %w", err)
	}

	if err := os.Rename(tmp, cleanDst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp to final: %w", err)
	}

	fs.logger.InfoContext(ctx, "File copied", "path", cleanDst)
	return nil
}

// Chmod implements the Chmod method of the FileSystem interface.
func (fs *fileSystemImpl) Chmod(ctx context.Context, path string, perm os.FileMode) error {
	cleanPath := filepath.Clean(path)
	if err := os.Chmod(cleanPath, perm); err != nil {
		fs.logger.ErrorContext(ctx, "Failed to change file mode", "path", cleanPath, "error", err)
		return fmt.Errorf("failed to chmod %s: %w", cleanPath, err)
	}
	return nil
}
