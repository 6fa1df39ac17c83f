// Package panichandler turns a panic into a logged crash report.
package panichandler

import (
	"log/slog"
	"runtime/debug"

	"github.com/pomowise/pomowise/app/paniclogger"
)

// Recover logs a panic with its stack trace.
// Usage: defer panichandler.Recover("install")
func Recover(context string) {
	if r := recover(); r != nil {
		report(context, r)
	}
}

// RecoverWithCallback logs a panic and then runs callback, typically to exit
// with a failure status.
// Usage: defer panichandler.RecoverWithCallback("install", func() { os.Exit(1) })
func RecoverWithCallback(context string, callback func()) {
	if r := recover(); r != nil {
		report(context, r)
		if callback != nil {
			callback()
		}
	}
}

func report(context string, r any) {
	stackTrace := string(debug.Stack())
	paniclogger.LogPanic(context, r, stackTrace)
	slog.Error("caught panic",
		slog.String("context", context),
		slog.Any("error", r),
		slog.String("panic_log", paniclogger.Path()),
	)
}
