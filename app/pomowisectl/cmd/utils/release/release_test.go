package release

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/fetcher"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAsset(t *testing.T) {
	linux, err := platform.Resolve("linux", "amd64")
	require.NoError(t, err)
	win, err := platform.Resolve("windows", "amd64")
	require.NoError(t, err)

	src := Source{Host: "https://github.com/", Org: "pomowise", Repo: "pomowise"}

	a := src.Resolve("pomowise", "v0.4.1", linux)
	assert.Equal(t, "pomowise-x86_64-unknown-linux-gnu.tar.gz", a.Name)
	assert.Equal(t, "https://github.com/pomowise/pomowise/releases/download/v0.4.1/pomowise-x86_64-unknown-linux-gnu.tar.gz", a.URL)
	assert.Equal(t, a.URL+".sha256", a.ChecksumURL)
	assert.Equal(t, "0.4.1", a.Version)

	w := src.Resolve("pomowise", "0.4.1", win)
	assert.Equal(t, "pomowise-x86_64-pc-windows-msvc.zip", w.Name)
	assert.Equal(t, "pomowise-x86_64-pc-windows-msvc.zip.sha256.minisig", SignatureName(w.ChecksumName))
}

func TestLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/pomowise/pomowise/releases", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]GitHubRelease{
			{TagName: "v0.10.0-rc.1", Prerelease: true},
			{TagName: "v0.9.0"},
			{TagName: "v0.12.0", Draft: true},
			{TagName: "v0.10.0"},
			{TagName: "nightly"},
			{TagName: "v0.2.3"},
		})
	}))
	defer srv.Close()

	c := NewClient(Source{APIHost: srv.URL, Org: "pomowise", Repo: "pomowise"}, fetcher.New(), nil)
	v, rel, err := c.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.10.0", v)
	assert.Equal(t, "v0.10.0", rel.TagName)
}

func TestLatestNoStableRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]GitHubRelease{{TagName: "v1.0.0-beta", Prerelease: true}})
	}))
	defer srv.Close()

	c := NewClient(Source{APIHost: srv.URL, Org: "pomowise", Repo: "pomowise"}, fetcher.New(), nil)
	_, _, err := c.Latest(context.Background())
	assert.Error(t, err)
}

func TestLatestRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(Source{APIHost: srv.URL, Org: "pomowise", Repo: "pomowise"}, fetcher.New(), nil)
	_, _, err := c.Latest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		name     string
		latest   string
		current  string
		expected bool
	}{
		{"newer version", "v2.0.0", "v1.0.0", true},
		{"same version", "v1.0.0", "v1.0.0", false},
		{"older version", "v1.0.0", "v2.0.0", false},
		{"dev version", "v1.0.0", "dev", true},
		{"mixed v prefix", "v2.0.0", "1.0.0", true},
		{"1.9.0 vs 1.10.0", "1.10.0", "1.9.0", true},
		{"1.10.0 vs 1.9.0", "1.9.0", "1.10.0", false},
		{"bare major", "2", "1.9.9", true},
		{"invalid current version", "2.0.0", "invalid", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNewerVersion(tt.latest, tt.current))
		})
	}
}
