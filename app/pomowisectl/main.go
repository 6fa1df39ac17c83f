package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pomowise/pomowise/app/panichandler"
	"github.com/pomowise/pomowise/app/paniclogger"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd"
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	defer func() {
		_ = paniclogger.Close()
	}()
	// a panic anywhere in a command still ends with exit status 1
	defer panichandler.RecoverWithCallback("pomowisectl", func() { code = 1 })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmd.Execute(ctx)
}
