package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, cmdCtx := newRoot()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			reportFailure(cmdCtx.failureLogger(), err)
		}
		stop()
		os.Exit(1)
	}
}

// reportFailure logs the error that ends the process together with a stack
// trace.
func reportFailure(logger *zap.Logger, err error) {
	logger.Error("command failed", zap.Error(err), zap.Stack("stack"))
	_ = logger.Sync()
}
