// Command pomowise is the launcher installed alongside the release binaries
// on systems where a compiled shim is preferred over a script. It is built
// twice, as pomowise and pomowise-tray, and starts the binary of the same
// name from the install root.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/config"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/launcher"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go forwardSignals(sigs, cancel)

	code := run(ctx, os.Args)
	signal.Stop(sigs)
	cancel()
	os.Exit(code)
}

// forwardSignals keeps the launcher alive while the child handles a signal.
// An interrupt from the terminal already reaches the child's process group,
// so only a termination request cancels ctx, which launcher.Run passes on.
func forwardSignals(sigs <-chan os.Signal, cancel context.CancelFunc) {
	for sig := range sigs {
		if sig == syscall.SIGTERM {
			cancel()
		}
	}
}

func run(ctx context.Context, argv []string) int {
	cfg, err := config.Load(ctx, config.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌ Error: invalid configuration:", err)
		return launcher.ExitFailure
	}

	name := binaryName(argv[0], cfg)
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return launcher.Run(ctx, filepath.Join(cfg.BinDir(), name), argv[1:], launcher.OSStdio())
}

// binaryName picks the target from the name we were invoked as. Anything
// other than the helper's name launches the main app.
func binaryName(arg0 string, cfg *config.Config) string {
	self := strings.TrimSuffix(filepath.Base(arg0), ".exe")
	if strings.EqualFold(self, cfg.Helper) {
		return cfg.Helper
	}
	return cfg.App
}
