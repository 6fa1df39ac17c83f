package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/fetcher"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/installmeta"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/release"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/updatecache"
	"github.com/spf13/cobra"
)

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Command flags
var (
	versionJSON     bool
	versionNoRemote bool
	versionNoCache  bool
	versionTimeout  int
)

// VersionInfo represents CLI version information
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	Platform  string `json:"platform"`
}

// InstalledInfo describes the pomowise installation, if any
type InstalledInfo struct {
	Version     string    `json:"version"`
	Source      string    `json:"source"`
	Triple      string    `json:"triple,omitempty"`
	InstalledAt time.Time `json:"installedAt"`
}

// UpdateInfo represents update check information
type UpdateInfo struct {
	Latest      *string   `json:"latest"`
	IsAvailable bool      `json:"isAvailable"`
	URL         *string   `json:"url"`
	Checked     time.Time `json:"checked"`
	Cached      bool      `json:"cached"`
	Error       string    `json:"error,omitempty"` // Error message if update check failed
}

// VersionOutput represents the complete version command output
type VersionOutput struct {
	CLI       VersionInfo    `json:"cli"`
	Installed *InstalledInfo `json:"installed,omitempty"`
	Update    *UpdateInfo    `json:"update,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long: `Display the pomowisectl version, the installed pomowise version and the
latest pomowise release on GitHub. The release lookup is cached for 24 hours.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		output := VersionOutput{
			CLI: VersionInfo{
				Version:   Version,
				Commit:    Commit,
				BuildDate: BuildDate,
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			},
			Installed: installedVersion(ctx),
		}

		if !versionNoRemote {
			current := ""
			if output.Installed != nil {
				current = output.Installed.Version
			}
			output.Update = checkForUpdates(ctx, current, time.Duration(versionTimeout)*time.Second, !versionNoCache)
		}

		if versionJSON {
			outputJSON(output)
		} else {
			outputHumanReadable(output)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output in JSON format")
	versionCmd.Flags().BoolVar(&versionNoRemote, "no-remote", false, "Skip GitHub update check")
	versionCmd.Flags().BoolVar(&versionNoCache, "no-cache", false, "Ignore the cached release lookup")
	versionCmd.Flags().IntVar(&versionTimeout, "timeout", 3, "Network timeout in seconds for update check")
}

// installedVersion reads the install record. Nil means not installed.
func installedVersion(ctx context.Context) *InstalledInfo {
	rec, err := installmeta.New(newFileSystem(), cfg.InstallRoot).Load(ctx)
	if err != nil {
		if !errors.Is(err, installmeta.ErrNotInstalled) {
			logger.Warn("Failed to read install record", "error", err)
		}
		return nil
	}
	return &InstalledInfo{
		Version:     rec.Version,
		Source:      rec.Source,
		Triple:      rec.Triple,
		InstalledAt: rec.InstalledAt,
	}
}

// checkForUpdates looks up the latest stable release, using the cache when allowed
func checkForUpdates(ctx context.Context, currentVersion string, timeout time.Duration, useCache bool) *UpdateInfo {
	info := &UpdateInfo{Checked: time.Now()}
	source := release.Source{Host: cfg.Host, APIHost: cfg.APIHost, Org: cfg.Org, Repo: cfg.Repo}
	sourceKey := source.Org + "/" + source.Repo
	cache := updatecache.New(newFileSystem(), cfg.InstallRoot)

	var latest, url string
	if entry, err := cache.Load(ctx); useCache && err == nil && entry != nil && entry.Fresh(sourceKey, info.Checked) {
		latest, url = entry.Latest, entry.URL
		info.Checked = entry.CheckedAt
		info.Cached = true
	} else {
		f := fetcher.New(
			fetcher.WithHTTPClient(&http.Client{Transport: fetcher.NewTransport(), Timeout: timeout}),
			fetcher.WithMaxRedirects(cfg.MaxRedirects),
			fetcher.WithUserAgent("pomowisectl/"+Version),
			fetcher.WithLogger(logger),
		)
		v, rel, err := release.NewClient(source, f, logger).Latest(ctx)
		if err != nil {
			var statusErr *fetcher.StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden {
				info.Error = "GitHub API rate limit exceeded. Try again later"
			} else {
				info.Error = fmt.Sprintf("failed to check for updates: %v", err)
			}
			return info
		}
		latest, url = v, rel.HTMLURL
		if err := cache.Save(ctx, updatecache.Entry{Latest: latest, URL: url, CheckedAt: info.Checked, Source: sourceKey}); err != nil {
			logger.Debug("Failed to save update cache", "error", err)
		}
	}

	info.Latest = &latest
	if url != "" {
		info.URL = &url
	}
	info.IsAvailable = currentVersion != "" && release.IsNewerVersion(latest, currentVersion)
	return info
}

// outputJSON outputs version information in JSON format
func outputJSON(output VersionOutput) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output)
}

// outputHumanReadable outputs version information in human-readable format
func outputHumanReadable(output VersionOutput) {
	fmt.Printf("pomowisectl %s (commit %s, %s)\n",
		output.CLI.Version,
		shortCommit(output.CLI.Commit),
		output.CLI.BuildDate)

	if output.Installed != nil {
		fmt.Printf("pomowise %s installed from %s", output.Installed.Version, output.Installed.Source)
		if output.Installed.Triple != "" {
			fmt.Printf(" (%s)", output.Installed.Triple)
		}
		fmt.Println()
	} else {
		fmt.Println("pomowise is not installed")
	}

	if output.Update != nil {
		switch {
		case output.Update.Error != "":
			fmt.Fprintf(os.Stderr, "Update check failed: %s\n", output.Update.Error)
		case output.Update.IsAvailable && output.Update.Latest != nil:
			fmt.Printf("Update: %s available → run: pomowisectl install\n", *output.Update.Latest)
		case output.Installed == nil && output.Update.Latest != nil:
			fmt.Printf("Latest release: %s → run: pomowisectl install\n", *output.Update.Latest)
		default:
			fmt.Println("Up to date.")
		}
	}
}

// shortCommit returns the first 7 characters of a commit hash
func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
