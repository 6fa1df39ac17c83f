package paniclogger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestInitCreatesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	if err := Init(dir); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer Close()

	if _, err := os.Stat(filepath.Join(dir, panicLogFile)); err != nil {
		t.Errorf("panic.log was not created: %v", err)
	}
	if got := Path(); got != filepath.Join(dir, panicLogFile) {
		t.Errorf("Path() = %q", got)
	}
}

func TestLogPanic(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer Close()

	LogPanic("install", "boom", "goroutine 1 [running]")

	content, err := os.ReadFile(filepath.Join(dir, panicLogFile))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	for _, want := range []string{"PANIC DETECTED", "install", "boom", "goroutine 1 [running]"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("log file does not contain %q", want)
		}
	}
}

func TestLogPanicWithoutInit(t *testing.T) {
	_ = Close()
	if Path() != "" {
		t.Errorf("Path() should be empty after Close")
	}
	// Falls back to stderr and must not panic.
	LogPanic("test", "error", "stack")
}

func TestConcurrentLogPanic(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer Close()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			LogPanic("concurrent test", "test error", "stack trace")
		}()
	}
	wg.Wait()

	content, err := os.ReadFile(filepath.Join(dir, panicLogFile))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if count := strings.Count(string(content), "PANIC DETECTED"); count != n {
		t.Errorf("Expected %d panic entries, got %d", n, count)
	}
}
