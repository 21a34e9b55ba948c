package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// interruptExitCode is the conventional status for a process ended by SIGINT.
const interruptExitCode = 130

// exitFunc is replaced in tests.
var exitFunc = os.Exit

// shutdownContext returns a context canceled by the first SIGINT or SIGTERM.
// In-flight transfers observe the cancellation, remove their .partial files
// and return. A second signal exits immediately.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Warn("interrupted, canceling transfers", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("interrupted again, exiting", slog.String("signal", sig.String()))
			exitFunc(interruptExitCode)
		case <-parent.Done():
		}
	}()

	return ctx
}
