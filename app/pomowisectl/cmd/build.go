package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/installer"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/platform"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/runner"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/sourcebuild"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/ui"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/validator"
	"github.com/spf13/cobra"
)

// CLI flag values for build command
var (
	buildRef     string
	buildWorkDir string
	buildNoShims bool
	buildAlias   string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build pomowise from source",
	Long: `Clones the pomowise repository and compiles it with 'cargo build --release',
then installs the resulting binaries into ~/.pomowise/bin.

Use this when no pre-built release exists for your platform, or when you
prefer not to run downloaded binaries. Requires git and cargo on PATH.

Exit codes:
  0 - Built and installed
  1 - Missing git or cargo, clone failure or build failure`,
	Example: `  pomowisectl build
  pomowisectl build --ref v0.4.1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fs := newFileSystem()
		windows := runtime.GOOS == platform.WINDOWS_OS
		if buildAlias != "" {
			if _, err := validator.New().ValidateName(ctx, "alias", buildAlias); err != nil {
				return err
			}
		}

		fmt.Println(ui.Title(" pomowise source build "))
		builder := sourcebuild.New(runner.New(), fs, logger)
		res, err := builder.Build(ctx, sourcebuild.Options{
			RepoURL: cfg.SourceRepo,
			Ref:     buildRef,
			Primary: cfg.App,
			Helper:  cfg.Helper,
			BinDir:  cfg.BinDir(),
			WorkDir: buildWorkDir,
			Windows: windows,
		})
		if err != nil {
			steps := []string{"Check the build output above for compiler errors.", "Or install a pre-built release: pomowisectl install"}
			if errors.Is(err, sourcebuild.ErrMissingDependency) {
				steps = []string{
					"Install git: https://git-scm.com/downloads",
					"Install the Rust toolchain: https://rustup.rs",
					"Or install a pre-built release: pomowisectl install",
				}
			}
			fmt.Fprintln(os.Stderr, ui.ErrorBlock("Build failed", err, steps))
			return reported(err)
		}

		for _, name := range res.Missing {
			fmt.Fprintln(os.Stderr, ui.Warning(name+" was not produced by the build"))
		}

		in := installer.New(installer.FromConfig(cfg, runtime.GOOS, runtime.GOARCH), fs, nil, nil, logger)
		if err := in.RecordBuild(ctx, buildRef, res.Installed); err != nil {
			logger.Warn("Failed to save install record", "error", err)
		}

		target := platform.Target{OS: runtime.GOOS, Arch: runtime.GOARCH, Windows: windows}
		if windows {
			target.ExeSuffix = ".exe"
		}
		shimNote := finishInstall(cmd, fs, target, buildNoShims, buildAlias)

		fields := []ui.Field{{Label: "Binaries", Value: cfg.BinDir()}}
		if buildRef != "" {
			fields = append(fields, ui.Field{Label: "Ref", Value: buildRef})
		}
		if shimNote != "" {
			fields = append(fields, ui.Field{Label: "Shims", Value: shimNote})
		}
		fmt.Println(ui.Summary("✅ pomowise built from source", fields))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildRef, "ref", "", "Branch or tag to build (default: the default branch)")
	buildCmd.Flags().StringVar(&buildWorkDir, "workdir", "", "Keep the checkout in this directory instead of a temporary one")
	buildCmd.Flags().BoolVar(&buildNoShims, "no-shims", false, "Do not write launcher shims")
	buildCmd.Flags().StringVar(&buildAlias, "alias", "", "Add a shell alias with this name to your shell profile")
}
