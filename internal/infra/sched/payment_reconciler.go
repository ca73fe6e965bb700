package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tutoring-payments/internal/usecase"
)

// PaymentReconciler periodically asks the gateway about payments stuck in
// processing and settles them. This covers lost notifications and crashes
// between intent creation and the callback.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how long a payment must sit in processing
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, interval: interval, staleAfter: staleAfter, batch: 200, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	n, err := w.uc.ReconcileStale(ctx, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("reconcile stale payments failed")
		return
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("reconciled stale payments")
	}
}
