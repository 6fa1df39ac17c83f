// Package runner executes external commands (tar, powershell, git, cargo)
// behind an interface so callers can be tested with a scripted MockRunner.
package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs a command and returns its combined output.
type Runner interface {
	// Run executes name with args in dir. An empty dir means the current directory.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
	// LookPath reports where name would be found on PATH.
	LookPath(name string) (string, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct{}

func New() Runner {
	return ExecRunner{}
}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, NewCmdError(CommandLine(name, args...), string(out), err)
	}
	return out, nil
}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// CommandLine renders name and args the way MockRunner keys them.
func CommandLine(name string, args ...string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// CmdError is returned when an external command exits unsuccessfully.
// It carries the command line and its output for diagnostics.
type CmdError struct {
	Command string
	Output  string
	Err     error
}

// Error implements the error interface for CmdError.
func (e *CmdError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("command '%s' failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command '%s' failed: %v\nOutput: %s", e.Command, e.Err, out)
}

// Unwrap provides access to the underlying error.
func (e *CmdError) Unwrap() error {
	return e.Err
}

// NewCmdError is a constructor that creates a new CmdError.
func NewCmdError(command, output string, err error) error {
	return &CmdError{
		Command: command,
		Output:  output,
		Err:     err,
	}
}
