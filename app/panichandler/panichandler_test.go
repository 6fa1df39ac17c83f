package panichandler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pomowise/pomowise/app/paniclogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverWritesPanicLog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, paniclogger.Init(dir))
	defer paniclogger.Close()

	func() {
		defer Recover("extract")
		panic("unexpected archive entry")
	}()

	data, err := os.ReadFile(filepath.Join(dir, "panic.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "unexpected archive entry"))
	assert.Contains(t, string(data), "extract")
}

func TestRecoverWithCallbackRunsCallback(t *testing.T) {
	require.NoError(t, paniclogger.Init(t.TempDir()))
	defer paniclogger.Close()

	called := false
	func() {
		defer RecoverWithCallback("install", func() { called = true })
		panic("boom")
	}()
	assert.True(t, called)
}

func TestRecoverWithoutPanic(t *testing.T) {
	called := false
	func() {
		defer RecoverWithCallback("install", func() { called = true })
	}()
	assert.False(t, called)
}
