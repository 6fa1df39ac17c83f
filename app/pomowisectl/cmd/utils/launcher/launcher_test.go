package launcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh scripts")
	}
}

// writeScript creates an executable shell script standing in for an installed binary.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestRunMissingBinary(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), filepath.Join(t.TempDir(), "pomowise"), nil, Stdio{Err: &stderr})

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, NotInstalledMessage("pomowise")+"\n", stderr.String())
}

func TestRunDirectoryIsNotABinary(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), t.TempDir(), nil, Stdio{Err: &stderr})
	assert.Equal(t, ExitFailure, code)
}

func TestRunForwardsArgsAndStdio(t *testing.T) {
	skipOnWindows(t)
	bin := writeScript(t, t.TempDir(), "pomowise", `read line; echo "args:$*"; echo "in:$line"; echo oops >&2`)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), bin, []string{"--work", "25", "a b"}, Stdio{
		In:  strings.NewReader("hello\n"),
		Out: &stdout,
		Err: &stderr,
	})

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "args:--work 25 a b\nin:hello\n", stdout.String())
	assert.Equal(t, "oops\n", stderr.String())
}

func TestRunPassesExitStatusThrough(t *testing.T) {
	skipOnWindows(t)
	bin := writeScript(t, t.TempDir(), "pomowise", "exit 42")

	code := Run(context.Background(), bin, nil, Stdio{Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
	assert.Equal(t, 42, code)
}

func TestRunKilledBySignalIsFailure(t *testing.T) {
	skipOnWindows(t)
	bin := writeScript(t, t.TempDir(), "pomowise", "kill -9 $$")

	code := Run(context.Background(), bin, nil, Stdio{Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
	assert.Equal(t, ExitFailure, code)
}

func TestRunCancelLetsChildExitWithItsStatus(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	ready := filepath.Join(dir, "ready")
	bin := writeScript(t, dir, "pomowise", `trap 'exit 7' TERM
touch "`+ready+`"
while :; do sleep 0.05; done`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			if _, err := os.Stat(ready); err == nil {
				cancel()
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	code := Run(ctx, bin, nil, Stdio{})
	assert.Equal(t, 7, code, "the child handles SIGTERM and its own status is returned")
}

func TestShimScriptWindows(t *testing.T) {
	s := ShimScript(`C:\Users\u\.pomowise\bin`, "pomowise-tray", true)
	assert.Contains(t, s, `pomowise-tray.exe`)
	assert.Contains(t, s, "%*")
	assert.Contains(t, s, "exit /b %ERRORLEVEL%")
	assert.Contains(t, s, NotInstalledMessage("pomowise-tray"))
}

func TestWriteShimsAndRemove(t *testing.T) {
	ctx := context.Background()
	fs := filesystem.New(nil)
	shimDir := filepath.Join(t.TempDir(), "shims")
	binDir := t.TempDir()

	paths, err := WriteShims(ctx, fs, shimDir, binDir, []string{"pomowise", "pomowise-tray"}, false)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		if runtime.GOOS != "windows" {
			assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
		}
		_, err = os.Stat(p + ".tmp")
		assert.True(t, os.IsNotExist(err))
	}

	require.NoError(t, RemoveShims(ctx, fs, shimDir, []string{"pomowise", "pomowise-tray"}, false))
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err))
	}
}

func TestShimFollowsLauncherContract(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()
	fs := filesystem.New(nil)
	shimDir := t.TempDir()
	binDir := filepath.Join(t.TempDir(), "it's bin")
	require.NoError(t, os.MkdirAll(binDir, 0o755))

	paths, err := WriteShims(ctx, fs, shimDir, binDir, []string{"pomowise"}, false)
	require.NoError(t, err)
	shim := paths[0]

	// Binary missing: remediation and exit 1.
	var stderr bytes.Buffer
	code := Run(ctx, shim, nil, Stdio{Out: &bytes.Buffer{}, Err: &stderr})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), NotInstalledMessage("pomowise"))

	// Binary present: args forwarded, status passed through.
	writeScript(t, binDir, "pomowise", `echo "$@"; exit 7`)
	var stdout bytes.Buffer
	code = Run(ctx, shim, []string{"stats", "--week"}, Stdio{Out: &stdout, Err: &bytes.Buffer{}})
	assert.Equal(t, 7, code)
	assert.Equal(t, "stats --week\n", stdout.String())
}

func TestOnPath(t *testing.T) {
	sep := string(os.PathListSeparator)
	dir := filepath.Join(string(os.PathSeparator)+"home", "u", ".local", "bin")
	assert.True(t, OnPath(dir, "/usr/bin"+sep+dir+string(os.PathSeparator)))
	assert.False(t, OnPath(dir, "/usr/bin"+sep+"/bin"))
	assert.False(t, OnPath(dir, ""))
}
