package installer

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/downloader"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/extractor"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/fetcher"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/installmeta"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/platform"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/release"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const asset = "app-x86_64-unknown-linux-gnu.tar.gz"

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func sha(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// releaseServer serves one release the way GitHub does: the download URL
// redirects to a CDN path that serves the bytes.
type releaseServer struct {
	*httptest.Server
	archive      []byte
	checksum     string
	archiveHits  atomic.Int32
	checksumHits atomic.Int32
	failArchive  atomic.Int32
}

func newReleaseServer(t *testing.T, archive []byte, checksumBody string) *releaseServer {
	t.Helper()
	rs := &releaseServer{archive: archive, checksum: checksumBody}
	mux := http.NewServeMux()
	mux.HandleFunc("/org/repo/releases/download/v1.2.3/"+asset, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cdn/"+asset, http.StatusFound)
	})
	mux.HandleFunc("/cdn/"+asset, func(w http.ResponseWriter, r *http.Request) {
		rs.archiveHits.Add(1)
		if rs.failArchive.Load() > 0 {
			rs.failArchive.Add(-1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(rs.archive)))
		_, _ = w.Write(rs.archive)
	})
	mux.HandleFunc("/org/repo/releases/download/v1.2.3/"+asset+".sha256", func(w http.ResponseWriter, r *http.Request) {
		rs.checksumHits.Add(1)
		_, _ = io.WriteString(w, rs.checksum)
	})
	mux.HandleFunc("/repos/org/repo/releases", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"tag_name":"v2.0.0-rc.1","prerelease":true},
			{"tag_name":"v1.2.3"},
			{"tag_name":"v1.1.0"},
			{"tag_name":"v9.9.9","draft":true}
		]`)
	})
	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

func testOptions(rs *releaseServer, root string) Options {
	return Options{
		App:         "app",
		Helper:      "app-tray",
		Source:      release.Source{Host: rs.URL, APIHost: rs.URL, Org: "org", Repo: "repo"},
		Version:     "1.2.3",
		InstallRoot: root,
		OS:          "linux",
		Arch:        "amd64",
		MaxAttempts: 3,
		Extractor:   extractor.ModeBuiltin,
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func newInstaller(opts Options) *Installer {
	return New(opts, filesystem.New(quietLogger), fetcher.New(fetcher.WithLogger(quietLogger)), runner.New(), quietLogger)
}

func TestInstallEndToEnd(t *testing.T) {
	archive := tarGz(t, map[string]string{"app": "#!/bin/sh\necho app\n", "app-tray": "#!/bin/sh\n"})
	rs := newReleaseServer(t, archive, sha(archive)+"  "+asset+"\n")
	root := filepath.Join(t.TempDir(), ".pomowise")

	var events []float64
	opts := testOptions(rs, root)
	opts.Progress = func(downloaded, total int64, percent float64) { events = append(events, percent) }

	out, err := newInstaller(opts).Install(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "x86_64-unknown-linux-gnu", out.Target.Triple)
	assert.Equal(t, "1.2.3", out.Version)
	assert.Equal(t, asset, out.Asset.Name)
	assert.Equal(t, sha(archive), out.Download.SHA256)
	assert.Equal(t, 1, out.Download.Attempts)
	assert.True(t, out.Report.Complete())
	assert.NotEmpty(t, events)
	assert.Equal(t, 100.0, events[len(events)-1])

	bin := filepath.Join(root, "bin", "app")
	info, err := os.Stat(bin)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.NotZero(t, info.Mode().Perm()&0o111, "bin/app must be executable")
		assert.True(t, extractor.IsExecutable(bin))
	}

	// Neither the archive nor its temp file survive.
	for _, p := range []string{filepath.Join(root, asset), filepath.Join(root, asset+".tmp")} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}

	rec, err := newInstaller(opts).Installed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", rec.Version)
	assert.Equal(t, installmeta.SourceRelease, rec.Source)
	assert.Equal(t, []string{"app", "app-tray"}, rec.Binaries)
}

func TestInstallSkipsWhenUpToDate(t *testing.T) {
	archive := tarGz(t, map[string]string{"app": "x", "app-tray": "y"})
	rs := newReleaseServer(t, archive, sha(archive)+"  "+asset)
	root := filepath.Join(t.TempDir(), ".pomowise")
	opts := testOptions(rs, root)

	_, err := newInstaller(opts).Install(context.Background())
	require.NoError(t, err)

	out, err := newInstaller(opts).Install(context.Background())
	require.NoError(t, err)
	assert.True(t, out.UpToDate)
	assert.Equal(t, int32(1), rs.archiveHits.Load())

	opts.Force = true
	out, err = newInstaller(opts).Install(context.Background())
	require.NoError(t, err)
	assert.False(t, out.UpToDate)
	assert.Equal(t, int32(2), rs.archiveHits.Load())
}

func TestInstallResolvesLatest(t *testing.T) {
	archive := tarGz(t, map[string]string{"app": "x", "app-tray": "y"})
	rs := newReleaseServer(t, archive, sha(archive))
	opts := testOptions(rs, t.TempDir())
	opts.Version = release.Latest

	out, err := newInstaller(opts).Install(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", out.Version)
}

func TestInstallRetriesTransientFailures(t *testing.T) {
	archive := tarGz(t, map[string]string{"app": "x", "app-tray": "y"})
	rs := newReleaseServer(t, archive, sha(archive))
	rs.failArchive.Store(2)

	var slept []time.Duration
	opts := testOptions(rs, t.TempDir())
	opts.BackoffBase = time.Second
	opts.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	out, err := newInstaller(opts).Install(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, out.Download.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
	assert.Equal(t, int32(3), rs.checksumHits.Load(), "each attempt re-reads the checksum")
}

func TestInstallChecksumMismatchIsFatalAfterRetries(t *testing.T) {
	archive := tarGz(t, map[string]string{"app": "x"})
	wrong := sha([]byte("something else"))
	rs := newReleaseServer(t, archive, wrong+"  "+asset)
	root := t.TempDir()
	opts := testOptions(rs, root)

	_, err := newInstaller(opts).Install(context.Background())
	require.Error(t, err)

	var mismatch *downloader.ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Contains(t, err.Error(), wrong)
	assert.Contains(t, err.Error(), sha(archive))
	assert.Equal(t, int32(3), rs.archiveHits.Load())

	for _, p := range []string{filepath.Join(root, asset), filepath.Join(root, asset+".tmp"), filepath.Join(root, "bin", "app")} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
}

func TestInstallGivesUpAfterThreeFailures(t *testing.T) {
	archive := tarGz(t, map[string]string{"app": "x"})
	rs := newReleaseServer(t, archive, sha(archive))
	rs.failArchive.Store(3)
	root := t.TempDir()

	_, err := newInstaller(testOptions(rs, root)).Install(context.Background())

	var statusErr *fetcher.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, int32(3), rs.archiveHits.Load())
	_, statErr := os.Stat(filepath.Join(root, "bin", "app"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestInstallMissingHelperIsWarning(t *testing.T) {
	archive := tarGz(t, map[string]string{"app": "x"})
	rs := newReleaseServer(t, archive, sha(archive))

	out, err := newInstaller(testOptions(rs, t.TempDir())).Install(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Report.Complete())
	assert.Equal(t, []string{"app-tray"}, out.Report.Missing)
}

func TestInstallUnsupportedPlatform(t *testing.T) {
	rs := newReleaseServer(t, nil, "")
	opts := testOptions(rs, t.TempDir())
	opts.OS, opts.Arch = "freebsd", "amd64"

	_, err := newInstaller(opts).Install(context.Background())
	var unsupported *platform.UnsupportedPlatformError
	require.True(t, errors.As(err, &unsupported))
	assert.Zero(t, rs.checksumHits.Load())
}

func TestInstallCorruptArchiveIsExtractionError(t *testing.T) {
	archive := []byte("not a tarball")
	rs := newReleaseServer(t, archive, sha(archive))
	root := t.TempDir()

	_, err := newInstaller(testOptions(rs, root)).Install(context.Background())
	var exErr *extractor.ExtractionError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, int32(1), rs.archiveHits.Load(), "extraction failures are not retried")

	_, statErr := os.Stat(filepath.Join(root, asset))
	assert.True(t, os.IsNotExist(statErr), "archive is removed even when extraction fails")
}

func TestInstallCancelled(t *testing.T) {
	archive := tarGz(t, map[string]string{"app": "x"})
	rs := newReleaseServer(t, archive, sha(archive))
	rs.failArchive.Store(10)

	ctx, cancel := context.WithCancel(context.Background())
	opts := testOptions(rs, t.TempDir())
	opts.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := newInstaller(opts).Install(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), rs.archiveHits.Load())
}

func TestRecordBuild(t *testing.T) {
	root := t.TempDir()
	in := New(Options{InstallRoot: root}, filesystem.New(quietLogger), nil, nil, quietLogger)

	require.NoError(t, in.RecordBuild(context.Background(), "v0.5.0", []string{filepath.Join(root, "bin", "app")}))
	rec, err := in.Installed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.5.0", rec.Version)
	assert.Equal(t, installmeta.SourceBuild, rec.Source)
	assert.Equal(t, []string{"app"}, rec.Binaries)
}
