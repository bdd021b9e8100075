package database

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownContext derives a context from parent that is cancelled on SIGTERM
// or SIGINT. onSignal, if non-nil, runs before cancellation so the caller can
// flush statistics while its statements are still being interrupted.
// The returned stop function releases the signal registration.
func ShutdownContext(parent context.Context, onSignal func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigChan:
			if onSignal != nil {
				onSignal(sig)
			}
			cancel()
		case <-ctx.Done():
			// Cancelled elsewhere
		}
	}()

	stop := func() {
		signal.Stop(sigChan)
		cancel()
	}
	return ctx, stop
}
