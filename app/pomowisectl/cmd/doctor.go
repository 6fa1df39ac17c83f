package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/elevation"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/extractor"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/launcher"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/platform"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/release"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/runner"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/sourcebuild"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/ui"
	"github.com/shirou/gopsutil/host"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the platform, toolchain and installation",
	Long: `Prints what the installer would do on this machine: the release target,
the asset it would download, which build tools are available and the state
of the current installation.

Exits with 1 when the platform has no pre-built release.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r := runner.New()

		fmt.Println(ui.Title(" pomowise doctor "))

		hostFields := []ui.Field{{Label: "Runtime", Value: runtime.GOOS + "/" + runtime.GOARCH}}
		if hi, err := host.InfoWithContext(ctx); err == nil {
			hostFields = append(hostFields,
				ui.Field{Label: "OS", Value: fmt.Sprintf("%s %s", hi.Platform, hi.PlatformVersion)},
				ui.Field{Label: "Kernel", Value: fmt.Sprintf("%s (%s)", hi.KernelVersion, hi.KernelArch)},
			)
		} else {
			logger.Debug("Host info unavailable", "error", err)
		}
		if elevation.IsElevated() {
			hostFields = append(hostFields, ui.Field{Label: "Elevated", Value: "yes"})
		}
		fmt.Println(ui.Summary("Host", hostFields))

		target, targetErr := platform.Resolve(runtime.GOOS, runtime.GOARCH)
		if targetErr == nil {
			asset := release.Source{Host: cfg.Host, Org: cfg.Org, Repo: cfg.Repo}.Resolve(cfg.App, "<version>", target)
			fmt.Println(ui.Summary("Release target", []ui.Field{
				{Label: "Triple", Value: target.Triple},
				{Label: "Asset", Value: asset.Name},
				{Label: "Checksum", Value: asset.ChecksumName},
				{Label: "Extractor", Value: cfg.Extractor},
			}))
		} else {
			fmt.Fprintln(os.Stderr, ui.Warning(targetErr.Error()))
		}

		tools := []string{"git", "cargo"}
		if runtime.GOOS == platform.WINDOWS_OS {
			tools = append(tools, "powershell")
		} else {
			tools = append(tools, "tar")
		}
		var toolFields []ui.Field
		for _, tool := range tools {
			path, err := r.LookPath(tool)
			if err != nil {
				path = "not found"
			}
			toolFields = append(toolFields, ui.Field{Label: tool, Value: path})
		}
		fmt.Println(ui.Summary("Tools", toolFields))
		if err := sourcebuild.New(r, nil, logger).Check(); err != nil {
			fmt.Println(ui.Muted("  'pomowisectl build' is unavailable: " + err.Error()))
		}

		installFields := []ui.Field{{Label: "Root", Value: cfg.InstallRoot}}
		if info := installedVersion(ctx); info != nil {
			installFields = append(installFields, ui.Field{Label: "Version", Value: info.Version + " (" + info.Source + ")"})
		} else {
			installFields = append(installFields, ui.Field{Label: "Version", Value: "not installed"})
		}
		for _, name := range []string{cfg.App, cfg.Helper} {
			bin := filepath.Join(cfg.BinDir(), target.BinaryName(name))
			state := "missing"
			if extractor.IsExecutable(bin) {
				state = "ok"
			} else if _, err := os.Stat(bin); err == nil {
				state = "present but not executable"
			}
			installFields = append(installFields, ui.Field{Label: name, Value: state})
		}
		onPath := "no"
		if launcher.OnPath(cfg.ShimDir, os.Getenv("PATH")) {
			onPath = "yes"
		}
		installFields = append(installFields, ui.Field{Label: "Shims", Value: cfg.ShimDir + " (on PATH: " + onPath + ")"})
		fmt.Println(ui.Summary("Installation", installFields))

		if targetErr != nil {
			return reported(targetErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
