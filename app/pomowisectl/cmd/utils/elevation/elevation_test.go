//go:build !windows

package elevation

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsElevatedMatchesEUID(t *testing.T) {
	assert.Equal(t, os.Geteuid() == 0, IsElevated())
}

func TestHintMentionsInstallRoot(t *testing.T) {
	t.Setenv("SUDO_USER", "")
	assert.Contains(t, Hint("/root/.pomowise"), "/root/.pomowise")

	t.Setenv("SUDO_USER", "alice")
	h := Hint("/home/alice/.pomowise")
	assert.Contains(t, h, "alice")
	assert.Contains(t, h, "sudo")
}
