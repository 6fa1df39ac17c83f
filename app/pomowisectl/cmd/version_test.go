package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/config"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/installmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTestConfig points the package config at a fresh install root.
func useTestConfig(t *testing.T) *config.Config {
	t.Helper()
	orig := cfg
	cfg = config.Default(t.TempDir())
	t.Cleanup(func() { cfg = orig })
	return cfg
}

// captureStdout runs fn and returns what it printed.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	fn()

	w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func releasesAPI(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/repos/pomowise/pomowise/releases", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

const releasesBody = `[
	{"tag_name": "v0.5.0-rc.1", "prerelease": true},
	{"tag_name": "v0.4.1", "html_url": "https://github.com/pomowise/pomowise/releases/tag/v0.4.1"},
	{"tag_name": "v0.3.0"}
]`

func TestVersionCommand(t *testing.T) {
	origVersion := Version
	origCommit := Commit
	origBuildDate := BuildDate
	defer func() {
		Version = origVersion
		Commit = origCommit
		BuildDate = origBuildDate
		versionJSON = false
		versionNoRemote = false
	}()

	Version = "v1.0.0"
	Commit = "abc123def456"
	BuildDate = "2026-01-01T00:00:00Z"

	t.Run("basic version output", func(t *testing.T) {
		useTestConfig(t)
		versionJSON = false
		versionNoRemote = true

		out := captureStdout(t, func() { versionCmd.Run(versionCmd, []string{}) })

		assert.Contains(t, out, "pomowisectl v1.0.0")
		assert.Contains(t, out, "abc123d")
		assert.Contains(t, out, "2026-01-01T00:00:00Z")
		assert.Contains(t, out, "pomowise is not installed")
	})

	t.Run("JSON output", func(t *testing.T) {
		c := useTestConfig(t)
		require.NoError(t, installmeta.New(newFileSystem(), c.InstallRoot).Save(context.Background(), installmeta.Record{
			Version: "0.4.1",
			Triple:  "x86_64-unknown-linux-gnu",
			Source:  installmeta.SourceRelease,
		}))
		versionJSON = true
		versionNoRemote = true

		out := captureStdout(t, func() { versionCmd.Run(versionCmd, []string{}) })

		var result VersionOutput
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, "v1.0.0", result.CLI.Version)
		assert.Equal(t, "abc123def456", result.CLI.Commit)
		require.NotNil(t, result.Installed)
		assert.Equal(t, "0.4.1", result.Installed.Version)
		assert.Equal(t, "x86_64-unknown-linux-gnu", result.Installed.Triple)
		assert.Nil(t, result.Update)
	})
}

func TestCheckForUpdates(t *testing.T) {
	ctx := context.Background()

	t.Run("newer release available", func(t *testing.T) {
		c := useTestConfig(t)
		srv, _ := releasesAPI(t, http.StatusOK, releasesBody)
		c.APIHost = srv.URL

		info := checkForUpdates(ctx, "0.3.0", time.Second, false)

		require.Empty(t, info.Error)
		require.NotNil(t, info.Latest)
		assert.Equal(t, "0.4.1", *info.Latest)
		require.NotNil(t, info.URL)
		assert.Contains(t, *info.URL, "v0.4.1")
		assert.True(t, info.IsAvailable)
		assert.False(t, info.Cached)
	})

	t.Run("up to date", func(t *testing.T) {
		c := useTestConfig(t)
		srv, _ := releasesAPI(t, http.StatusOK, releasesBody)
		c.APIHost = srv.URL

		info := checkForUpdates(ctx, "0.4.1", time.Second, false)
		require.Empty(t, info.Error)
		assert.False(t, info.IsAvailable)
	})

	t.Run("not installed never reports an update", func(t *testing.T) {
		c := useTestConfig(t)
		srv, _ := releasesAPI(t, http.StatusOK, releasesBody)
		c.APIHost = srv.URL

		info := checkForUpdates(ctx, "", time.Second, false)
		require.NotNil(t, info.Latest)
		assert.False(t, info.IsAvailable)
	})

	t.Run("second lookup is served from cache", func(t *testing.T) {
		c := useTestConfig(t)
		srv, hits := releasesAPI(t, http.StatusOK, releasesBody)
		c.APIHost = srv.URL

		first := checkForUpdates(ctx, "0.3.0", time.Second, true)
		require.Empty(t, first.Error)
		second := checkForUpdates(ctx, "0.3.0", time.Second, true)

		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
		assert.True(t, second.Cached)
		require.NotNil(t, second.Latest)
		assert.Equal(t, "0.4.1", *second.Latest)
	})

	t.Run("cache is ignored when disabled", func(t *testing.T) {
		c := useTestConfig(t)
		srv, hits := releasesAPI(t, http.StatusOK, releasesBody)
		c.APIHost = srv.URL

		checkForUpdates(ctx, "0.3.0", time.Second, true)
		info := checkForUpdates(ctx, "0.3.0", time.Second, false)

		assert.Equal(t, int32(2), atomic.LoadInt32(hits))
		assert.False(t, info.Cached)
	})

	t.Run("rate limited", func(t *testing.T) {
		c := useTestConfig(t)
		srv, _ := releasesAPI(t, http.StatusForbidden, `{"message":"API rate limit exceeded"}`)
		c.APIHost = srv.URL

		info := checkForUpdates(ctx, "0.3.0", time.Second, false)
		assert.Contains(t, info.Error, "rate limit")
		assert.Nil(t, info.Latest)
	})

	t.Run("server error", func(t *testing.T) {
		c := useTestConfig(t)
		srv, _ := releasesAPI(t, http.StatusInternalServerError, "")
		c.APIHost = srv.URL

		info := checkForUpdates(ctx, "0.3.0", time.Second, false)
		assert.Contains(t, info.Error, "failed to check for updates")
	})
}

func TestShortCommit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"long commit", "abc123def456789", "abc123d"},
		{"exactly 7 chars", "abc123d", "abc123d"},
		{"short commit", "abc", "abc"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shortCommit(tt.input))
		})
	}
}
