// Package launcher starts installed binaries and writes the PATH shims that do
// the same from a shell.
//
// The contract is shared by Run and the shims: if the binary is missing, print
// one remediation line and exit 1; otherwise run it with all arguments and the
// caller's standard streams, and exit with its status (1 when it has none).
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
)

const (
	ExitOK      = 0
	ExitFailure = 1
)

// StopGrace is how long a cancelled child may take to exit before it is killed.
const StopGrace = 5 * time.Second

// Stdio holds the streams handed to the launched process.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// OSStdio returns the process's own streams.
func OSStdio() Stdio {
	return Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// NotInstalledMessage is the remediation line for a missing binary.
func NotInstalledMessage(name string) string {
	return fmt.Sprintf("%s is not installed. Run: pomowisectl install", name)
}

// Run executes binary with args and returns the exit status to use.
func Run(ctx context.Context, binary string, args []string, stdio Stdio) int {
	name := strings.TrimSuffix(filepath.Base(binary), ".exe")

	info, err := os.Stat(binary)
	if err != nil || info.IsDir() {
		fmt.Fprintln(stdio.Err, NotInstalledMessage(name))
		return ExitFailure
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = stdio.In
	cmd.Stdout = stdio.Out
	cmd.Stderr = stdio.Err
	// On cancellation the child is asked to stop, so it can restore the
	// terminal, and is only killed if it outlives StopGrace.
	cmd.Cancel = func() error {
		return terminate(cmd.Process)
	}
	cmd.WaitDelay = StopGrace

	err = cmd.Run()
	if err == nil {
		return ExitOK
	}

	// ProcessState is set whenever the child ran, including after a
	// cancellation where Run reports the context error instead.
	if state := cmd.ProcessState; state != nil {
		// -1 means the process was killed by a signal.
		if code := state.ExitCode(); code >= 0 {
			return code
		}
		return ExitFailure
	}

	fmt.Fprintf(stdio.Err, "failed to start %s: %v\n", name, err)
	return ExitFailure
}

// ShimPath returns where the shim for name lives.
func ShimPath(shimDir, name string, windows bool) string {
	if windows {
		return filepath.Join(shimDir, name+".cmd")
	}
	return filepath.Join(shimDir, name)
}

// ShimScript renders the shim for name that launches binDir/name.
func ShimScript(binDir, name string, windows bool) string {
	if windows {
		bin := filepath.Join(binDir, name+".exe")
		return "@echo off\r\n" +
			"set \"BIN=" + bin + "\"\r\n" +
			"if not exist \"%BIN%\" (\r\n" +
			"  echo " + NotInstalledMessage(name) + " 1>&2\r\n" +
			"  exit /b 1\r\n" +
			")\r\n" +
			"\"%BIN%\" %*\r\n" +
			"exit /b %ERRORLEVEL%\r\n"
	}
	bin := filepath.Join(binDir, name)
	return "#!/bin/sh\n" +
		"BIN='" + strings.ReplaceAll(bin, "'", `'\''`) + "'\n" +
		"if [ ! -x \"$BIN\" ]; then\n" +
		"  echo \"" + NotInstalledMessage(name) + "\" >&2\n" +
		"  exit 1\n" +
		"fi\n" +
		"exec \"$BIN\" \"$@\"\n"
}

// WriteShims writes one shim per name into shimDir and returns their paths.
func WriteShims(ctx context.Context, fs filesystem.FileSystem, shimDir, binDir string, names []string, windows bool) ([]string, error) {
	if err := fs.CreateDir(ctx, shimDir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := ShimPath(shimDir, name, windows)
		tmp := path + ".tmp"
		if err := fs.WriteFile(ctx, tmp, []byte(ShimScript(binDir, name, windows)), 0o755); err != nil {
			return paths, err
		}
		if !windows {
			if err := fs.Chmod(ctx, tmp, 0o755); err != nil {
				_ = fs.RemoveFile(ctx, tmp)
				return paths, err
			}
		}
		if err := fs.Rename(ctx, tmp, path); err != nil {
			_ = fs.RemoveFile(ctx, tmp)
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// RemoveShims deletes the shims for names. Missing shims are ignored.
func RemoveShims(ctx context.Context, fs filesystem.FileSystem, shimDir string, names []string, windows bool) error {
	var errs []error
	for _, name := range names {
		if err := fs.RemoveFile(ctx, ShimPath(shimDir, name, windows)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OnPath reports whether dir is listed in the PATH value.
func OnPath(dir, pathEnv string) bool {
	clean := filepath.Clean(dir)
	for _, p := range filepath.SplitList(pathEnv) {
		if p != "" && filepath.Clean(p) == clean {
			return true
		}
	}
	return false
}
