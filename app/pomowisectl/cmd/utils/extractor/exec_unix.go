//go:build !windows

package extractor

import "golang.org/x/sys/unix"

// IsExecutable reports whether the current user may execute path.
func IsExecutable(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}
