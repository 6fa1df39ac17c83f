package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/config"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/elevation"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/installer"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/launcher"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/platform"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/profile"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/runner"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/ui"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/validator"
	"github.com/spf13/cobra"
)

// CLI flag values for install command
var (
	installVersion    string
	installForce      bool
	installNoShims    bool
	installAlias      string
	installNoProgress bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download, verify and install pomowise",
	Long: `Downloads the pomowise release archive for this platform, verifies its
SHA-256 checksum, extracts it into ~/.pomowise/bin and writes launcher
shims into the shim directory (~/.local/bin by default).

A failed download is tried up to 3 times, waiting 1s and then 2s between tries.
A checksum mismatch is never installed.

Exit codes:
  0 - Installed (or already up to date)
  1 - Unsupported platform, download failure or extraction failure`,
	Example: `  pomowisectl install
  pomowisectl install --version 0.4.1
  pomowisectl install --force --alias pomo`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if elevation.IsElevated() {
			fmt.Fprintln(os.Stderr, ui.Warning(elevation.Hint(cfg.InstallRoot)))
		}

		opts := installer.FromConfig(cfg, runtime.GOOS, runtime.GOARCH)
		if installVersion != "" {
			v, err := validator.New().ValidateVersion(ctx, installVersion)
			if err != nil {
				return err
			}
			opts.Version = v
		}
		opts.Force = installForce
		if installAlias != "" {
			if _, err := validator.New().ValidateName(ctx, "alias", installAlias); err != nil {
				return err
			}
		}

		done := func() {}
		if !installNoProgress {
			opts.Progress, done = ui.ProgressBar(os.Stderr, "Downloading")
		}

		fs := newFileSystem()
		in := installer.New(opts, fs, newFetcher(), runner.New(), logger)

		fmt.Println(ui.Title(" pomowise installer "))
		out, err := in.Install(ctx)
		done()
		if err != nil {
			fmt.Fprintln(os.Stderr, ui.ErrorBlock("Installation failed", err, remediationFor(err)))
			return reported(err)
		}

		if out.UpToDate {
			fmt.Println(ui.Success(fmt.Sprintf("pomowise %s is already installed (use --force to reinstall)", out.Version)))
		} else {
			for _, name := range out.Report.Missing {
				fmt.Fprintln(os.Stderr, ui.Warning(name+" was not found in the release archive, the installation is incomplete"))
			}
		}

		shimNote := finishInstall(cmd, fs, out.Target, installNoShims, installAlias)

		fields := []ui.Field{
			{Label: "Version", Value: out.Version},
			{Label: "Target", Value: out.Target.Triple},
			{Label: "Binaries", Value: opts.BinDir()},
		}
		if out.Download != nil {
			fields = append(fields,
				ui.Field{Label: "SHA-256", Value: out.Download.SHA256},
				ui.Field{Label: "Attempts", Value: fmt.Sprint(out.Download.Attempts)},
			)
		}
		if shimNote != "" {
			fields = append(fields, ui.Field{Label: "Shims", Value: shimNote})
		}
		fmt.Println(ui.Summary("✅ pomowise installed", fields))
		fmt.Println(ui.Muted("Start it with: " + cfg.App))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().StringVar(&installVersion, "version", "", "Release version to install (default: latest)")
	installCmd.Flags().BoolVar(&installForce, "force", false, "Reinstall even if the version is already installed")
	installCmd.Flags().BoolVar(&installNoShims, "no-shims", false, "Do not write launcher shims")
	installCmd.Flags().StringVar(&installAlias, "alias", "", "Add a shell alias with this name to your shell profile")
	installCmd.Flags().BoolVar(&installNoProgress, "no-progress", false, "Hide the download progress bar")
}

// remediationFor picks the advice printed under a fatal install error.
func remediationFor(err error) []string {
	var unsupported *platform.UnsupportedPlatformError
	if errors.As(err, &unsupported) {
		return []string{
			"No pre-built binary exists for this platform.",
			"Build from source instead: pomowisectl build",
		}
	}
	return ui.Remediation
}

// finishInstall writes shims and the optional alias. Failures here are
// warnings: the binaries are already installed. It returns a summary note.
func finishInstall(cmd *cobra.Command, fs filesystem.FileSystem, target platform.Target, noShims bool, alias string) string {
	ctx := cmd.Context()
	binDir := cfg.BinDir()
	names := []string{cfg.App, cfg.Helper}

	note := ""
	if !noShims {
		paths, err := launcher.WriteShims(ctx, fs, cfg.ShimDir, binDir, names, target.Windows)
		if err != nil {
			fmt.Fprintln(os.Stderr, ui.Warning("Failed to write launcher shims: "+err.Error()))
		} else {
			note = fmt.Sprintf("%d in %s", len(paths), cfg.ShimDir)
			if !launcher.OnPath(cfg.ShimDir, os.Getenv("PATH")) {
				fmt.Fprintln(os.Stderr, ui.Warning(cfg.ShimDir+" is not on your PATH"))
				if !target.Windows {
					fmt.Fprintln(os.Stderr, ui.Muted("  Add it with: "+profile.PathLine(os.Getenv("SHELL"), cfg.ShimDir)))
				}
			}
		}
	}

	if alias != "" {
		if target.Windows {
			fmt.Fprintln(os.Stderr, ui.Warning("--alias is not supported on Windows, skipping"))
			return note
		}
		home, err := config.HomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, ui.Warning("Cannot determine home directory: "+err.Error()))
			return note
		}
		rc := profile.RCFile(os.Getenv("SHELL"), home, runtime.GOOS)
		line := profile.AliasLine(alias, filepath.Join(binDir, target.BinaryName(cfg.App)))
		changed, err := profile.EnsureLine(ctx, fs, rc, profile.Marker, line)
		switch {
		case err != nil:
			fmt.Fprintln(os.Stderr, ui.Warning("Failed to update "+rc+": "+err.Error()))
		case changed:
			fmt.Println(ui.Success(fmt.Sprintf("Alias '%s' added to %s (open a new shell to use it)", alias, rc)))
		}
	}
	return note
}
