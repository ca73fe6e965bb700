package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/repository"
)

var _ repository.GatewayEventRepository = (*gatewayEventRepo)(nil)

type gatewayEventRepo struct{ pool *pgxpool.Pool }

func NewGatewayEventRepo(pool *pgxpool.Pool) *gatewayEventRepo {
	return &gatewayEventRepo{pool: pool}
}

func (r *gatewayEventRepo) Record(ctx context.Context, tx repository.Tx, ev *model.GatewayEvent) (bool, error) {
	const q = `INSERT INTO gateway_events (event_id, intent_id, type, received_at) VALUES ($1,$2,$3,$4)
ON CONFLICT (event_id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, ev.EventID, ev.IntentID, ev.Type, ev.ReceivedAt)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct{ pool *pgxpool.Pool }

func NewOutboxRepo(pool *pgxpool.Pool) *outboxRepo {
	return &outboxRepo{pool: pool}
}

func (r *outboxRepo) Add(ctx context.Context, tx repository.Tx, m *model.OutboxMessage) error {
	const q = `INSERT INTO outbox (id, topic, key, payload, status, created_at) VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.Topic, m.Key, m.Payload, string(m.Status), m.CreatedAt)
	return mapErr(err)
}

// FetchPending returns the oldest pending messages. Inside a transaction the
// rows are claimed with SKIP LOCKED so several publishers can run.
func (r *outboxRepo) FetchPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.OutboxMessage, error) {
	q := `SELECT id, topic, key, payload, status, created_at, sent_at FROM outbox WHERE status='pending' ORDER BY id LIMIT $1`
	if inTx(tx) {
		q += " FOR UPDATE SKIP LOCKED"
	}
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.OutboxMessage
	for rows.Next() {
		m := &model.OutboxMessage{}
		if err := rows.Scan(&m.ID, &m.Topic, &m.Key, &m.Payload, &m.Status, &m.CreatedAt, &m.SentAt); err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err())
}

func (r *outboxRepo) MarkSent(ctx context.Context, tx repository.Tx, id string, sentAt time.Time) error {
	_, err := execSQL(ctx, r.pool, tx, `UPDATE outbox SET status='sent', sent_at=$2 WHERE id=$1;`, id, sentAt)
	return mapErr(err)
}
