package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pomowise/pomowise/app/paniclogger"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/config"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/fetcher"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
	"github.com/spf13/cobra"
)

// Global flags
var (
	configFile   string
	logLevelFlag string
)

var (
	cfg    *config.Config
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:     "pomowisectl",
	Short:   "pomowise installer",
	Version: Version,
	Long: `
🍅 pomowisectl (` + Version + `)

Installs the pomowise terminal pomodoro timer and its tray helper from
pre-built GitHub releases, or builds them from source.

INSTALL:
  install     Download, verify and install the latest (or a given) release
  build       Build from source with git and cargo
  uninstall   Stop pomowise and remove everything the installer created

INFO:
  version     Show installer, installed and latest versions
  doctor      Show platform, toolchain and installation diagnostics
  run         Launch the installed pomowise binary

CONFIGURATION:
  Settings come from built-in defaults, then ~/.pomowise/installer.yaml
  (or --config), then a .env file in the current directory, then
  POMOWISE_* environment variables.

EXAMPLES:
  pomowisectl install
  pomowisectl install --version 0.4.1 --alias pomo
  POMOWISE_EXTRACTOR=builtin pomowisectl install
  pomowisectl build --ref main
  pomowisectl run -- --work 50
`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context())
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// errReported marks an error that was already shown to the user.
var errReported = errors.New("error already reported")

type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() []error {
	return []error{e.err, errReported}
}

func reported(err error) error {
	return &reportedError{err: err}
}

// exitCodeError carries the status of a launched process.
type exitCodeError struct{ code int }

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute runs the CLI and returns the process exit code: 0 on success,
// 1 on any fatal error, or the launched program's own status for "run".
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	if !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, "❌ Error:", err)
	}
	return 1
}

func init() {
	// Disable Cobra's automatic "completion" command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	// Set the version - needs to be done in init() because Version is set via ldflags
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("pomowisectl {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to an installer.yaml file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")
}

// setup loads the configuration, installs the default logger and opens the panic log.
func setup(ctx context.Context) error {
	loaded, err := config.Load(ctx, config.Options{File: configFile})
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if logLevelFlag != "" {
		loaded.LogLevel = logLevelFlag
	}
	cfg = loaded

	logger, err = newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if err := paniclogger.Init(cfg.LogDir()); err != nil {
		logger.Debug("Panic log unavailable", "path", cfg.LogDir(), "error", err)
	}
	return nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("loglevel must be 'debug', 'info', 'warn' or 'error'")
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func newFileSystem() filesystem.FileSystem {
	return filesystem.New(logger)
}

func newFetcher() fetcher.Fetcher {
	return fetcher.New(
		fetcher.WithMaxRedirects(cfg.MaxRedirects),
		fetcher.WithUserAgent("pomowisectl/"+Version),
		fetcher.WithLogger(logger),
	)
}
