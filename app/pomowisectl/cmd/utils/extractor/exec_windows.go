//go:build windows

package extractor

import (
	"os"
	"path/filepath"
	"strings"
)

// IsExecutable reports whether path is an existing .exe file.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return strings.EqualFold(filepath.Ext(path), ".exe")
}
