package cmd

import (
	"path/filepath"
	"runtime"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/launcher"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/platform"
	"github.com/spf13/cobra"
)

var runHelper bool

var runCmd = &cobra.Command{
	Use:   "run [-- args...]",
	Short: "Launch the installed pomowise",
	Long: `Runs the installed pomowise binary with the given arguments and the
current terminal, and exits with its exit status. If pomowise is not
installed, prints how to install it and exits with 1.`,
	Example: `  pomowisectl run
  pomowisectl run -- --work 50 --break 10
  pomowisectl run --helper`,
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := cfg.App
		if runHelper {
			name = cfg.Helper
		}
		if runtime.GOOS == platform.WINDOWS_OS {
			name += ".exe"
		}

		code := launcher.Run(cmd.Context(), filepath.Join(cfg.BinDir(), name), args, launcher.OSStdio())
		if code != launcher.ExitOK {
			return &exitCodeError{code: code}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runHelper, "helper", false, "Launch the tray helper instead")
}
