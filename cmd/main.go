package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksaver/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runner.app().Run(ctx, os.Args)
	stop()

	if code := exitCode(logger, err); code != 0 {
		os.Exit(code)
	}
}

// exitCode is 0 for success and unimplemented features, 2 when the user has to sign in
// again and 1 for everything else.
func exitCode(logger *log.Logger, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, shared.ErrNotImplemented):
		logger.Warn("not implemented")
		return 0
	case shared.IsAuthError(err):
		logger.Error("authentication required", "kind", shared.Kind(err), "error", err)
		return 2
	default:
		logger.Error("application error", "kind", shared.Kind(err), "error", err)
		return 1
	}
}
