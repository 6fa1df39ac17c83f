// Package sourcebuild is the alternate installer: it clones the application
// repository and compiles it with cargo when no pre-built release fits.
package sourcebuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/runner"
)

// ErrMissingDependency is matched by errors.Is when a required tool is not on PATH.
var ErrMissingDependency = errors.New("missing required dependency")

// RequiredTools must be on PATH before a build starts.
var RequiredTools = []string{"git", "cargo"}

// MissingDependencyError lists the tools that could not be found.
type MissingDependencyError struct {
	Tools []string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s: %s must be installed and on PATH (see https://rustup.rs for cargo)", ErrMissingDependency, strings.Join(e.Tools, ", "))
}

func (e *MissingDependencyError) Unwrap() error {
	return ErrMissingDependency
}

// Options describes one build.
type Options struct {
	RepoURL string
	// Ref is a branch or tag. Empty builds the default branch.
	Ref string
	// Primary must be produced by the build, Helper is optional.
	Primary string
	Helper  string
	BinDir  string
	// WorkDir is used for the checkout when set and is kept afterwards.
	// Otherwise a temporary directory is created and removed.
	WorkDir string
	Windows bool
}

// Result lists what the build put into BinDir.
type Result struct {
	Installed []string
	Missing   []string
}

// Builder runs git and cargo through a Runner.
type Builder struct {
	runner runner.Runner
	fs     filesystem.FileSystem
	logger *slog.Logger
}

func New(r runner.Runner, fs filesystem.FileSystem, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{runner: r, fs: fs, logger: logger}
}

// Check returns a *MissingDependencyError when any required tool is absent.
func (b *Builder) Check() error {
	var missing []string
	for _, tool := range RequiredTools {
		if _, err := b.runner.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return &MissingDependencyError{Tools: missing}
	}
	return nil
}

// CloneArgs returns the git arguments for a shallow clone into dest.
func CloneArgs(repoURL, ref, dest string) []string {
	args := []string{"clone", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	return append(args, repoURL, dest)
}

// Build clones, compiles and copies the binaries into opts.BinDir.
func (b *Builder) Build(ctx context.Context, opts Options) (*Result, error) {
	if err := b.Check(); err != nil {
		return nil, err
	}

	work := opts.WorkDir
	if work == "" {
		tmp, err := os.MkdirTemp("", "pomowise-build-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create build directory: %w", err)
		}
		work = tmp
		defer func() {
			if err := b.fs.RemoveDir(context.Background(), tmp); err != nil {
				b.logger.Warn("Failed to remove build directory", "path", tmp, "error", err)
			}
		}()
	}
	src := filepath.Join(work, "src")

	b.logger.Info("Cloning repository", "url", opts.RepoURL, "ref", opts.Ref, "path", src)
	if _, err := b.runner.Run(ctx, "", "git", CloneArgs(opts.RepoURL, opts.Ref, src)...); err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", opts.RepoURL, err)
	}

	b.logger.Info("Building release binaries", "path", src)
	if _, err := b.runner.Run(ctx, src, "cargo", "build", "--release"); err != nil {
		return nil, fmt.Errorf("cargo build failed: %w", err)
	}

	exe := ""
	if opts.Windows {
		exe = ".exe"
	}

	if err := b.fs.CreateDir(ctx, opts.BinDir, 0o755); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, name := range []string{opts.Primary, opts.Helper} {
		if name == "" {
			continue
		}
		built := filepath.Join(src, "target", "release", name+exe)
		exists, err := b.fs.CheckIfFileExists(ctx, built)
		if err != nil {
			return nil, err
		}
		if !exists {
			if name == opts.Primary {
				return nil, fmt.Errorf("cargo build did not produce %s", built)
			}
			b.logger.Warn("Build output missing", "binary", name, "path", built)
			res.Missing = append(res.Missing, name+exe)
			continue
		}

		dst := filepath.Join(opts.BinDir, name+exe)
		if err := b.fs.CopyFileAtomic(ctx, built, dst, 0o755); err != nil {
			return nil, fmt.Errorf("failed to install %s: %w", name, err)
		}
		res.Installed = append(res.Installed, dst)
	}
	return res, nil
}
