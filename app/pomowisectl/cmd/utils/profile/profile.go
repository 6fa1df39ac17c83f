// Package profile keeps a single marked line in a shell startup file.
package profile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
)

// Marker tags lines owned by pomowisectl.
const Marker = "# added by pomowisectl"

// RCFile returns the startup file for shell (a name or a path such as /bin/zsh).
func RCFile(shell, home, goos string) string {
	switch filepath.Base(shell) {
	case "zsh":
		return filepath.Join(home, ".zshrc")
	case "bash":
		if goos == "darwin" {
			return filepath.Join(home, ".bash_profile")
		}
		return filepath.Join(home, ".bashrc")
	case "fish":
		return filepath.Join(home, ".config", "fish", "config.fish")
	}
	return filepath.Join(home, ".profile")
}

// AliasLine builds an alias definition understood by sh, bash, zsh and fish.
func AliasLine(name, target string) string {
	return fmt.Sprintf("alias %s='%s'", name, strings.ReplaceAll(target, "'", `'\''`))
}

// PathLine prepends dir to PATH.
func PathLine(shell, dir string) string {
	if filepath.Base(shell) == "fish" {
		return fmt.Sprintf("fish_add_path %q", dir)
	}
	return fmt.Sprintf("export PATH=%q:$PATH", dir)
}

// EnsureLine makes path contain exactly one line tagged with marker, equal to
// line. An existing tagged line is replaced in place, otherwise line is appended.
// It reports whether the file changed.
func EnsureLine(ctx context.Context, fs filesystem.FileSystem, path, marker, line string) (bool, error) {
	tagged := line + "  " + marker

	exists, err := fs.CheckIfFileExists(ctx, path)
	if err != nil {
		return false, err
	}

	var lines []string
	if exists {
		data, err := fs.ReadFile(ctx, path)
		if err != nil {
			return false, err
		}
		content := strings.TrimRight(string(data), "\n")
		if content != "" {
			lines = strings.Split(content, "\n")
		}
	}

	found := false
	out := lines[:0:0]
	for _, l := range lines {
		if !strings.HasSuffix(strings.TrimSpace(l), marker) {
			out = append(out, l)
			continue
		}
		if found {
			// drop duplicates from earlier runs
			continue
		}
		found = true
		out = append(out, tagged)
	}
	if !found {
		out = append(out, tagged)
	}

	updated := strings.Join(out, "\n") + "\n"
	if exists && updated == strings.Join(lines, "\n")+"\n" {
		return false, nil
	}

	if err := fs.CreateDir(ctx, filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := fs.WriteFile(ctx, path, []byte(updated), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveLine deletes every line tagged with marker. It reports whether the file changed.
func RemoveLine(ctx context.Context, fs filesystem.FileSystem, path, marker string) (bool, error) {
	exists, err := fs.CheckIfFileExists(ctx, path)
	if err != nil || !exists {
		return false, err
	}
	data, err := fs.ReadFile(ctx, path)
	if err != nil {
		return false, err
	}

	lines := strings.Split(string(data), "\n")
	kept := lines[:0:0]
	for _, l := range lines {
		if !strings.HasSuffix(strings.TrimSpace(l), marker) {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lines) {
		return false, nil
	}
	if err := fs.WriteFile(ctx, path, []byte(strings.Join(kept, "\n")), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
