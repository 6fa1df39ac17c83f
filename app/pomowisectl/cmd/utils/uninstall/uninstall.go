// Package uninstall stops running pomowise processes and removes everything
// the installer put on disk.
package uninstall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/launcher"
	"github.com/shirou/gopsutil/process"
)

// Proc is a running process that may be terminated.
type Proc struct {
	PID  int32
	Name string
	Kill func(ctx context.Context) error
}

// ProcessLister returns the processes visible to the current user.
type ProcessLister func(ctx context.Context) ([]Proc, error)

// SystemProcesses lists processes through gopsutil.
func SystemProcesses(ctx context.Context) ([]Proc, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	out := make([]Proc, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// process exited or belongs to another user
			continue
		}
		out = append(out, Proc{
			PID:  p.Pid,
			Name: name,
			Kill: p.KillWithContext,
		})
	}
	return out, nil
}

// Options describes what to remove.
type Options struct {
	InstallRoot string
	StatusFile  string
	ShimDir     string
	// Names are the binary names without an executable suffix.
	Names   []string
	Windows bool
}

// Report lists what Uninstall did.
type Report struct {
	Killed  []int32
	Removed []string
}

type Uninstaller struct {
	fs     filesystem.FileSystem
	list   ProcessLister
	logger *slog.Logger
}

// New creates an Uninstaller. A nil lister uses SystemProcesses.
func New(fs filesystem.FileSystem, list ProcessLister, logger *slog.Logger) *Uninstaller {
	if list == nil {
		list = SystemProcesses
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uninstaller{fs: fs, list: list, logger: logger}
}

// matches reports whether a process name is one of names, allowing ".exe".
func matches(procName string, names []string, windows bool) bool {
	if windows {
		procName = strings.TrimSuffix(strings.ToLower(procName), ".exe")
	}
	for _, n := range names {
		if windows {
			n = strings.ToLower(n)
		}
		if procName == n {
			return true
		}
	}
	return false
}

// Uninstall kills matching processes, then removes the shims, the status file
// and the install root. It keeps going after a failure and returns all errors.
func (u *Uninstaller) Uninstall(ctx context.Context, opts Options) (*Report, error) {
	rep := &Report{}
	var errs []error

	procs, err := u.list(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	self := int32(os.Getpid())
	for _, p := range procs {
		if p.PID == self || !matches(p.Name, opts.Names, opts.Windows) {
			continue
		}
		if err := p.Kill(ctx); err != nil {
			u.logger.Warn("Failed to terminate process", "pid", p.PID, "name", p.Name, "error", err)
			errs = append(errs, fmt.Errorf("failed to terminate %s (pid %d): %w", p.Name, p.PID, err))
			continue
		}
		u.logger.Info("Terminated process", "pid", p.PID, "name", p.Name)
		rep.Killed = append(rep.Killed, p.PID)
	}

	if opts.ShimDir != "" {
		for _, n := range opts.Names {
			path := launcher.ShimPath(opts.ShimDir, n, opts.Windows)
			exists, _ := u.fs.CheckIfFileExists(ctx, path)
			if err := u.fs.RemoveFile(ctx, path); err != nil {
				errs = append(errs, err)
			} else if exists {
				rep.Removed = append(rep.Removed, path)
			}
		}
	}

	if opts.StatusFile != "" {
		exists, _ := u.fs.CheckIfFileExists(ctx, opts.StatusFile)
		if err := u.fs.RemoveFile(ctx, opts.StatusFile); err != nil {
			errs = append(errs, err)
		} else if exists {
			rep.Removed = append(rep.Removed, opts.StatusFile)
		}
	}

	if opts.InstallRoot != "" {
		if _, err := os.Stat(opts.InstallRoot); err == nil {
			if err := u.fs.RemoveDir(ctx, opts.InstallRoot); err != nil {
				errs = append(errs, err)
			} else {
				rep.Removed = append(rep.Removed, opts.InstallRoot)
			}
		}
	}

	return rep, errors.Join(errs...)
}
