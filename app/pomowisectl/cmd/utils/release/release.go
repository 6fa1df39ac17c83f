// Package release names pomowise release assets and looks up published
// versions on GitHub.
//
// Assets follow "{app}-{triple}.{ext}" with a sibling ".sha256" file, and are
// served from "{host}/{org}/{repo}/releases/download/v{version}/{name}".
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/fetcher"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/platform"
)

const (
	DefaultHost    = "https://github.com"
	DefaultAPIHost = "https://api.github.com"
	Latest         = "latest"
)

// Source identifies where releases are published.
type Source struct {
	Host    string
	APIHost string
	Org     string
	Repo    string
}

// Asset is the resolved set of URLs for one platform and version.
type Asset struct {
	Name         string
	URL          string
	ChecksumName string
	ChecksumURL  string
	Version      string
}

// AssetName returns "{app}-{triple}.{ext}".
func AssetName(app string, t platform.Target) string {
	return fmt.Sprintf("%s-%s.%s", app, t.Triple, t.ArchiveExt)
}

// ChecksumName returns the sidecar name for an asset.
func ChecksumName(assetName string) string {
	return assetName + ".sha256"
}

// SignatureName returns the minisign signature name for a checksum sidecar.
func SignatureName(checksumName string) string {
	return checksumName + ".minisig"
}

// DownloadURL builds the download URL of a named asset. version may carry a
// leading "v"; it is normalised.
func (s Source) DownloadURL(version, name string) string {
	return fmt.Sprintf("%s/%s/%s/releases/download/v%s/%s",
		strings.TrimRight(s.Host, "/"), s.Org, s.Repo, TrimV(version), name)
}

// Resolve returns the archive and checksum URLs for app on target.
func (s Source) Resolve(app, version string, t platform.Target) Asset {
	name := AssetName(app, t)
	sumName := ChecksumName(name)
	return Asset{
		Name:         name,
		URL:          s.DownloadURL(version, name),
		ChecksumName: sumName,
		ChecksumURL:  s.DownloadURL(version, sumName),
		Version:      TrimV(version),
	}
}

// TrimV strips one leading "v".
func TrimV(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// GitHubRelease represents a GitHub release
type GitHubRelease struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Prerelease bool   `json:"prerelease"`
	Draft      bool   `json:"draft"`
	HTMLURL    string `json:"html_url"`
}

// Client queries the releases API.
type Client struct {
	source  Source
	fetcher fetcher.Fetcher
	logger  *slog.Logger
}

func NewClient(source Source, f fetcher.Fetcher, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if source.APIHost == "" {
		source.APIHost = DefaultAPIHost
	}
	return &Client{source: source, fetcher: f, logger: logger}
}

// Latest returns the highest stable version, without the "v" prefix.
// Drafts, prereleases and tags that do not parse as semver are skipped.
func (c *Client) Latest(ctx context.Context) (string, *GitHubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=100",
		strings.TrimRight(c.source.APIHost, "/"), c.source.Org, c.source.Repo)

	resp, err := c.fetcher.Get(ctx, url)
	if err != nil {
		c.logger.Error("Failed to fetch releases list", "url", url, "error", err)
		return "", nil, fmt.Errorf("failed to fetch releases list: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("Failed to close response body", "error", err)
		}
	}()

	var releases []GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return "", nil, fmt.Errorf("failed to decode releases list: %w", err)
	}

	var (
		best    *semver.Version
		bestRel *GitHubRelease
	)
	for i := range releases {
		r := &releases[i]
		if r.Draft || r.Prerelease {
			continue
		}
		v, err := ParseSemver(r.TagName)
		if err != nil {
			c.logger.Debug("Skipping non-semver tag", "tag", r.TagName)
			continue
		}
		if v.Prerelease() != "" {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestRel = v, r
		}
	}
	if best == nil {
		return "", nil, fmt.Errorf("no stable release found for %s/%s", c.source.Org, c.source.Repo)
	}
	return best.String(), bestRel, nil
}

// ParseSemver parses a version string, tolerating a "v" prefix and a bare major.
func ParseSemver(version string) (*semver.Version, error) {
	version = TrimV(version)
	v, err := semver.NewVersion(version)
	if err == nil {
		return v, nil
	}
	if version != "" && !strings.Contains(version, ".") {
		return semver.NewVersion(version + ".0.0")
	}
	return nil, err
}

// IsNewerVersion reports whether latest is strictly newer than current.
// A "dev" build always has an update available.
func IsNewerVersion(latest, current string) bool {
	if current == "dev" {
		return true
	}
	latestVer, err := ParseSemver(latest)
	if err != nil {
		return TrimV(latest) > TrimV(current)
	}
	currentVer, err := ParseSemver(current)
	if err != nil {
		return true
	}
	return latestVer.GreaterThan(currentVer)
}
