package graceful

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// WithShutdown returns a context that is cancelled when the process receives
// SIGINT or SIGTERM.
func WithShutdown(parent context.Context, logger *logrus.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("received exit signal: %v", sig)
		cancel()
	}()

	return ctx
}
