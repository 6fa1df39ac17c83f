package cmd

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/config"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/platform"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/profile"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/ui"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/uninstall"
	"github.com/spf13/cobra"
)

// CLI flag values for uninstall command
var (
	uninstallYes bool
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove pomowise",
	Long: `Stops running pomowise and pomowise-tray processes, then removes the
install root (~/.pomowise, including the timer status file), the launcher
shims and any alias line added to your shell profile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !uninstallYes {
			fmt.Printf("This removes %s and the pomowise shims in %s.\n", cfg.InstallRoot, cfg.ShimDir)
			fmt.Print("👉 Continue? [y/N]: ")
			reader := bufio.NewReader(os.Stdin)
			input, _ := reader.ReadString('\n')
			if answer := strings.ToLower(strings.TrimSpace(input)); answer != "y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		fs := newFileSystem()
		windows := runtime.GOOS == platform.WINDOWS_OS
		rep, err := uninstall.New(fs, nil, logger).Uninstall(ctx, uninstall.Options{
			InstallRoot: cfg.InstallRoot,
			StatusFile:  cfg.StatusFile(),
			ShimDir:     cfg.ShimDir,
			Names:       []string{cfg.App, cfg.Helper},
			Windows:     windows,
		})

		if !windows {
			if home, hErr := config.HomeDir(); hErr == nil {
				rc := profile.RCFile(os.Getenv("SHELL"), home, runtime.GOOS)
				if changed, pErr := profile.RemoveLine(ctx, fs, rc, profile.Marker); pErr != nil {
					fmt.Fprintln(os.Stderr, ui.Warning("Failed to clean "+rc+": "+pErr.Error()))
				} else if changed {
					rep.Removed = append(rep.Removed, "alias in "+rc)
				}
			}
		}

		for _, pid := range rep.Killed {
			fmt.Printf("🛑 Stopped process %d\n", pid)
		}
		for _, p := range rep.Removed {
			fmt.Printf("🗑️  Removed %s\n", p)
		}

		if err != nil {
			fmt.Fprintln(os.Stderr, ui.ErrorBlock("Uninstall incomplete", err, []string{
				"Close pomowise manually and run 'pomowisectl uninstall' again.",
			}))
			return reported(err)
		}
		if len(rep.Killed) == 0 && len(rep.Removed) == 0 {
			fmt.Println("Nothing to remove, pomowise is not installed.")
			return nil
		}
		fmt.Println(ui.Success("pomowise uninstalled"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)

	uninstallCmd.Flags().BoolVarP(&uninstallYes, "yes", "y", false, "Do not ask for confirmation")
}
