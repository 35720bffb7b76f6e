//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/campus-portal/auth"
	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
	"github.com/jrsteele09/campus-portal/monitor"
	"github.com/rs/zerolog/log"
)

// watchResume re-runs the expiry check and the login check when the process
// is continued after a stop, which is also what a resumed laptop delivers to
// a job suspended with it. Timers may have slept past their deadlines.
func watchResume(ctx context.Context, mon *monitor.Monitor, b *auth.Bootstrapper) {
	resumed := make(chan os.Signal, 1)
	signal.Notify(resumed, syscall.SIGCONT)

	go func() {
		defer signal.Stop(resumed)
		for {
			select {
			case <-ctx.Done():
				return
			case <-resumed:
				log.Info().Msg("Resumed, re-checking session")
				if err := mon.Check(ctx); err != nil {
					log.Err(err).Msg("Expiry check after resume failed")
				}
				if err := b.Refresh(ctx); err != nil && !apperrors.Is(err, apperrors.ErrThrottled) {
					log.Warn().Err(err).Msg("Login check after resume failed")
				}
			}
		}
	}()
}
