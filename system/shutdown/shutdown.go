package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Hook is one teardown step. Hooks run in reverse registration order so
// that later components stop before the ones they depend on.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

var exit = os.Exit

// WaitForSignal blocks until SIGINT/SIGTERM arrives or ctx ends.
func WaitForSignal(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	log.Info().Msg("Shutdown requested")
}

// Run executes hooks within timeout. A failing hook is logged and the
// remaining hooks still run.
func Run(timeout time.Duration, hooks ...Hook) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.Fn(ctx); err != nil {
			log.Error().Err(err).Str("step", h.Name).Msg("Shutdown step failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			continue
		}
		log.Debug().Str("step", h.Name).Msg("Shutdown step complete")
	}
	return errors.Join(errs...)
}

// Shutdown runs the hooks and exits the process.
func Shutdown(timeout time.Duration, hooks ...Hook) {
	if err := Run(timeout, hooks...); err != nil {
		exit(1)
		return
	}
	log.Info().Msg("Tesy convector stopped")
	exit(0)
}

func ShutdownWithError(err error, msg string, hooks ...Hook) {
	log.Error().Err(err).Msg(msg)
	_ = Run(5*time.Second, hooks...)
	exit(1)
}
