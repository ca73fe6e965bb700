package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"tutoring-payments/internal/domain/ports/adapter"
	"tutoring-payments/internal/domain/ports/repository"
	"tutoring-payments/internal/infra/metrics"
)

// OutboxProcessor relays committed outbox rows to the event publisher.
// Delivery is at-least-once: a row is marked sent only after Publish returns.
type OutboxProcessor struct {
	outbox    repository.OutboxRepository
	publisher adapter.EventPublisher
	tm        repository.TransactionManager
	interval  time.Duration
	batch     int
	running   atomic.Bool
	log       *zerolog.Logger
}

func NewOutboxProcessor(
	outbox repository.OutboxRepository,
	publisher adapter.EventPublisher,
	tm repository.TransactionManager,
	interval time.Duration,
	batch int,
	logger *zerolog.Logger,
) *OutboxProcessor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	l := logger.With().Str("component", "OutboxProcessor").Logger()
	return &OutboxProcessor{
		outbox:    outbox,
		publisher: publisher,
		tm:        tm,
		interval:  interval,
		batch:     batch,
		log:       &l,
	}
}

// Start polls until ctx is cancelled, handing each drain to the pool.
// This should be run in a goroutine.
func (p *OutboxProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Dur("interval", p.interval).Msg("outbox processor started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("outbox processor stopping")
			return
		case <-ticker.C:
			// one drain at a time; SKIP LOCKED keeps other instances apart
			if !p.running.CompareAndSwap(false, true) {
				continue
			}
			err := pool.Submit(func(ctx context.Context) error {
				defer p.running.Store(false)
				_, err := p.Drain(ctx)
				return err
			})
			if err != nil {
				p.running.Store(false)
				p.log.Warn().Err(err).Msg("outbox drain not scheduled")
			}
		}
	}
}

// Drain publishes one batch of pending rows in creation order and returns how
// many were sent. It stops at the first publish failure so later events are
// not delivered ahead of an earlier one.
func (p *OutboxProcessor) Drain(ctx context.Context) (int, error) {
	sent := 0
	err := p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		msgs, err := p.outbox.FetchPending(ctx, tx, p.batch)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if err := p.publisher.Publish(ctx, m.Topic, m.Key, m.Payload); err != nil {
				metrics.IncOutbox(m.Topic, "error")
				p.log.Warn().Err(err).Str("outbox_id", m.ID).Str("topic", m.Topic).Msg("publish failed, will retry")
				return nil
			}
			if err := p.outbox.MarkSent(ctx, tx, m.ID, time.Now()); err != nil {
				return err
			}
			metrics.IncOutbox(m.Topic, "sent")
			sent++
		}
		return nil
	})
	if err != nil {
		p.log.Error().Err(err).Msg("outbox drain failed")
		return 0, err
	}
	if sent > 0 {
		p.log.Debug().Int("count", sent).Msg("outbox messages published")
	}
	return sent, nil
}
