package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/runner"
)

// CommandExtractor shells out to the platform's own archive tool:
// tar on Unix, Expand-Archive on Windows.
type CommandExtractor struct {
	runner  runner.Runner
	windows bool
}

func NewCommandExtractor(r runner.Runner, windows bool) *CommandExtractor {
	return &CommandExtractor{runner: r, windows: windows}
}

// Extract implements Extractor.
func (c *CommandExtractor) Extract(ctx context.Context, archive, destDir string) error {
	name, args := c.command(archive, destDir)
	if _, err := c.runner.Run(ctx, "", name, args...); err != nil {
		return &ExtractionError{Archive: archive, Err: err}
	}
	return nil
}

func (c *CommandExtractor) command(archive, destDir string) (string, []string) {
	if c.windows {
		script := fmt.Sprintf("Expand-Archive -Force -LiteralPath '%s' -DestinationPath '%s'",
			psQuote(archive), psQuote(destDir))
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
	}
	return "tar", []string{"-xzf", archive, "-C", destDir}
}

// psQuote escapes a value for a single-quoted PowerShell string.
func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
