package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/infra/metrics"
)

// Sweeper drops expired sessions from a backend that does not expire keys itself.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SessionSweeper periodically sweeps idle sessions.
type SessionSweeper struct {
	interval time.Duration
	store    Sweeper
	log      *zerolog.Logger
}

func NewSessionSweeper(interval time.Duration, store Sweeper, logger *zerolog.Logger) *SessionSweeper {
	exprLog := logger.With().Str("component", "SessionSweeper").Logger()
	return &SessionSweeper{
		interval: interval,
		store:    store,
		log:      &exprLog,
	}
}

func (w *SessionSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting session expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping session expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SessionSweeper) sweep(ctx context.Context) {
	n, err := w.store.SweepExpired(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("session sweep error")
	}
	if n > 0 {
		metrics.AddSessionsExpired(n)
		w.log.Debug().Int("count", n).Msg("expired sessions dropped")
	}
}
