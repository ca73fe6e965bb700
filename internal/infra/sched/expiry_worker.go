package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tutoring-payments/internal/domain/ports/repository"
	"tutoring-payments/internal/infra/metrics"
	"tutoring-payments/internal/usecase"
)

// ExpiryWorker periodically expires lapsed tutor subscriptions and refreshes
// the per-status subscription gauge.
type ExpiryWorker struct {
	interval time.Duration
	subs     repository.SubscriptionRepository
	subUC    usecase.SubscriptionUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subs repository.SubscriptionRepository, subUC usecase.SubscriptionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		subs:     subs,
		subUC:    subUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	n, err := w.subUC.ExpireDue(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("expiry worker error")
	}
	if n > 0 {
		metrics.IncSubscriptionsExpired(n)
		w.log.Info().Int("count", n).Msg("expired subscriptions finished")
	}

	counts, err := w.subs.CountByStatus(ctx, nil)
	if err != nil {
		w.log.Warn().Err(err).Msg("count subscriptions failed")
		return
	}
	metrics.SetSubscriptionsTotal(counts)
}
