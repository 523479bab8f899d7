package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context cancelled on SIGINT/SIGTERM. onInterrupt,
// when non-nil, runs once in the signal goroutine before cancellation.
func SignalContext(parent context.Context, onInterrupt func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sig)

		select {
		case <-sig:
			if onInterrupt != nil {
				onInterrupt()
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
