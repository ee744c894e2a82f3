package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/clock"
)

// SweepRunner is the piece of the deposit service the worker drives.
type SweepRunner interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically expires deposits past their payment deadline. A single
// instance runs per process; per-deposit timers are deliberately avoided.
type Sweeper struct {
	svc      SweepRunner
	clock    clock.Clock
	interval time.Duration
}

const defaultSweepInterval = time.Minute

func NewSweeper(svc SweepRunner, clk clock.Clock, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		svc:      svc,
		clock:    clk,
		interval: interval,
	}
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("deposit sweeper started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("deposit sweeper stopped")
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Sweeper) sweepOnce(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("sweep pass panicked")
		}
	}()

	start := time.Now()
	expired, err := w.svc.SweepExpired(ctx, w.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("sweep pass failed")
		return
	}
	if expired > 0 {
		log.Info().Int("expired", expired).Dur("took", time.Since(start)).Msg("sweep pass")
	} else {
		log.Debug().Dur("took", time.Since(start)).Msg("sweep pass, nothing due")
	}
}
