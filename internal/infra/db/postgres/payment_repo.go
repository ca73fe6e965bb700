package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"tutoring-payments/internal/domain"
	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, type, amount, currency, method, status, session_id, resource_id, video_id,
  gateway_intent_id, gateway_reference, gateway_response, description, metadata, created_at, updated_at, completed_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(&p.ID, &p.UserID, &p.Type, &p.Amount, &p.Currency, &p.Method, &p.Status,
		&p.SessionID, &p.ResourceID, &p.VideoID, &p.GatewayIntentID, &p.GatewayReference,
		&p.GatewayResponse, &p.Description, &p.Metadata, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  status=$7, gateway_intent_id=$11, gateway_reference=$12, gateway_response=$13,
  description=$14, metadata=$15, updated_at=$17, completed_at=COALESCE(payments.completed_at, $18);`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.Type, p.Amount, p.Currency, p.Method, p.Status,
		p.SessionID, p.ResourceID, p.VideoID, p.GatewayIntentID, p.GatewayReference, p.GatewayResponse,
		p.Description, p.Metadata, p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	return mapErr(err)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := forUpdate(`SELECT `+paymentColumns+` FROM payments WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.Payment, error) {
	if intentID == "" {
		return nil, domain.ErrNotFound
	}
	q := forUpdate(`SELECT `+paymentColumns+` FROM payments WHERE gateway_intent_id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, intentID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2;`
	return r.list(ctx, tx, q, userID, limit)
}

func (r *paymentRepo) ListStaleProcessing(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments
WHERE status='processing' AND updated_at < $1 ORDER BY updated_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Payment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (r *paymentRepo) SetGatewayIntent(ctx context.Context, tx repository.Tx, id, intentID string) error {
	const q = `UPDATE payments SET gateway_intent_id=$2, status='processing', updated_at=NOW()
WHERE id=$1 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, intentID)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment %s is no longer pending", domain.ErrInvalidTransition, id)
	}
	return nil
}

// TransitionStatus only touches the row while it still has status `from`.
func (r *paymentRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentStatus, upd repository.StatusUpdate) (bool, error) {
	const q = `
UPDATE payments
   SET status = $3,
       completed_at = COALESCE(completed_at, $4),
       gateway_reference = COALESCE($5, gateway_reference),
       gateway_response = COALESCE($6, gateway_response),
       updated_at = NOW()
 WHERE id = $1
   AND status = $2;`

	var resp interface{}
	if upd.GatewayResponse != nil {
		resp = upd.GatewayResponse
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to), upd.CompletedAt, upd.GatewayReference, resp)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) ExistsCompleted(ctx context.Context, tx repository.Tx, userID string, kind model.AccessKind, targetID string) (bool, error) {
	var q string
	switch kind {
	case model.AccessResource:
		q = `SELECT EXISTS (SELECT 1 FROM payments WHERE user_id=$1 AND resource_id=$2 AND status='completed');`
	case model.AccessVideo:
		q = `SELECT EXISTS (SELECT 1 FROM payments WHERE user_id=$1 AND video_id=$2 AND status='completed');`
	default:
		return false, domain.ErrInvalidArgument
	}
	return r.exists(ctx, tx, q, userID, targetID)
}

func (r *paymentRepo) ExistsCompletedForSession(ctx context.Context, tx repository.Tx, sessionID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM payments WHERE session_id=$1 AND status IN ('completed','partially_refunded'));`
	return r.exists(ctx, tx, q, sessionID)
}

func (r *paymentRepo) exists(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapScanErr(err)
	}
	return ok, nil
}
