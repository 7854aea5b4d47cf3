package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/infra/metrics"
)

// SubscriptionFinisher is the part of the subscription use case the worker drives.
type SubscriptionFinisher interface {
	FinishExpired(ctx context.Context) (int, error)
}

// ExpiryWorker periodically finishes expired subscriptions via the use case.
type ExpiryWorker struct {
	interval time.Duration
	subUC    SubscriptionFinisher
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC SubscriptionFinisher, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		subUC:    subUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	n, err := w.subUC.FinishExpired(ctx)
	if err != nil {
		metrics.IncSweep("subscription_expiry", "failed")
		w.log.Error().Err(err).Msg("expiry worker error")
		return
	}
	metrics.IncSweep("subscription_expiry", "ok")
	if n > 0 {
		w.log.Debug().Int("count", n).Msg("expired subscriptions finished")
	}
}
