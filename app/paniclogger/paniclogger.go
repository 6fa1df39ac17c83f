// Package paniclogger appends crash reports to <dir>/panic.log so a failed
// install leaves something behind to attach to a bug report.
package paniclogger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	panicLogFile = "panic.log"
	maxFileSize  = 5 * 1024 * 1024 // rotated to panic.log.old beyond this
)

var (
	logFile  *os.File
	logDir   string
	fileLock sync.Mutex
)

// Init opens dir/panic.log for appending, creating dir if needed.
// Calling it again switches to the new directory.
func Init(dir string) error {
	fileLock.Lock()
	defer fileLock.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, panicLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open panic log file: %w", err)
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile, logDir = f, dir
	return nil
}

// Path returns the active log path, or "" before Init.
func Path() string {
	fileLock.Lock()
	defer fileLock.Unlock()
	if logFile == nil {
		return ""
	}
	return filepath.Join(logDir, panicLogFile)
}

// LogPanic writes one crash entry. Without Init it writes to stderr.
func LogPanic(context string, panicError any, stackTrace string) {
	fileLock.Lock()
	defer fileLock.Unlock()

	entry := fmt.Sprintf(
		"\n================================================================================\n"+
			"PANIC DETECTED\n"+
			"================================================================================\n"+
			"Timestamp: %s\n"+
			"Context:   %s\n"+
			"Error:     %v\n"+
			"\nStack Trace:\n%s\n"+
			"================================================================================\n\n",
		time.Now().Format(time.RFC3339Nano), context, panicError, stackTrace,
	)

	if logFile == nil {
		_, _ = fmt.Fprint(os.Stderr, entry)
		return
	}

	if err := rotateIfNeeded(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to rotate panic log: %v\n", err)
	}
	if logFile == nil {
		_, _ = fmt.Fprint(os.Stderr, entry)
		return
	}
	if _, err := logFile.WriteString(entry); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to write panic log: %v\n%s", err, entry)
	}
	_ = logFile.Sync()
}

// rotateIfNeeded must be called with fileLock held.
func rotateIfNeeded() error {
	stat, err := logFile.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < maxFileSize {
		return nil
	}

	_ = logFile.Close()
	logFile = nil

	logPath := filepath.Join(logDir, panicLogFile)
	backupPath := logPath + ".old"
	_ = os.Remove(backupPath)
	if err := os.Rename(logPath, backupPath); err != nil {
		return err
	}

	logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	return err
}

// Close closes the log file.
func Close() error {
	fileLock.Lock()
	defer fileLock.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
