//go:build !windows

package elevation

import "os"

// IsElevated reports whether the process runs as root.
func IsElevated() bool {
	return os.Geteuid() == 0
}

// Hint explains why installing as root is usually a mistake.
func Hint(installRoot string) string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		return "Running under sudo. Files are installed for " + sudoUser + " into " + installRoot +
			" but will be owned by root.\nRun pomowisectl without sudo unless you need this."
	}
	return "Running as root. pomowise is installed per user into " + installRoot + ".\n" +
		"Run pomowisectl as the account that will use pomowise."
}
