package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/infra/metrics"
)

// IntentSettler settles paid intents and expires unpaid ones.
type IntentSettler interface {
	RedrivePaid(ctx context.Context, limit int) (int, error)
	ExpireStale(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

// IntentSweeper periodically settles intents whose payment was recorded but
// not applied, then fails unpaid intents left pending longer than staleAfter
// so abandoned invoices can no longer be confirmed.
type IntentSweeper struct {
	uc         IntentSettler
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending intent must be to expire
	batch      int
	log        *zerolog.Logger
}

func NewIntentSweeper(uc IntentSettler, interval, staleAfter time.Duration, logger *zerolog.Logger) *IntentSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	l := logger.With().Str("component", "IntentSweeper").Logger()
	return &IntentSweeper{uc: uc, interval: interval, staleAfter: staleAfter, batch: 200, log: &l}
}

func (w *IntentSweeper) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *IntentSweeper) tick(ctx context.Context) {
	if n, err := w.uc.RedrivePaid(ctx, w.batch); err != nil {
		metrics.IncSweep("paid_intents", "failed")
		w.log.Error().Err(err).Msg("list paid intents failed")
	} else {
		metrics.IncSweep("paid_intents", "ok")
		if n > 0 {
			w.log.Info().Int("count", n).Msg("paid intents settled")
		}
	}

	n, err := w.uc.ExpireStale(ctx, w.staleAfter, w.batch)
	if err != nil {
		metrics.IncSweep("stale_intents", "failed")
		w.log.Error().Err(err).Msg("list pending intents failed")
		return
	}
	metrics.IncSweep("stale_intents", "ok")
	if n > 0 {
		w.log.Info().Int("count", n).Msg("stale payment intents expired")
	}
}
