package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/repository"
)

var _ repository.RefundRepository = (*refundRepo)(nil)

type refundRepo struct{ pool *pgxpool.Pool }

func NewRefundRepo(pool *pgxpool.Pool) *refundRepo {
	return &refundRepo{pool: pool}
}

const refundColumns = `id, payment_id, reason, reason_detail, amount, status, admin_notes, requested_at, processed_at, processed_by`

func scanRefund(row pgx.Row) (*model.Refund, error) {
	rf := &model.Refund{}
	if err := row.Scan(&rf.ID, &rf.PaymentID, &rf.Reason, &rf.ReasonDetail, &rf.Amount, &rf.Status,
		&rf.AdminNotes, &rf.RequestedAt, &rf.ProcessedAt, &rf.ProcessedBy); err != nil {
		return nil, mapScanErr(err)
	}
	return rf, nil
}

// Create relies on the unique payment_id; a second refund maps to domain.ErrAlreadyExists.
func (r *refundRepo) Create(ctx context.Context, tx repository.Tx, rf *model.Refund) error {
	const q = `INSERT INTO refunds (` + refundColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`
	_, err := execSQL(ctx, r.pool, tx, q, rf.ID, rf.PaymentID, rf.Reason, rf.ReasonDetail, rf.Amount, rf.Status,
		rf.AdminNotes, rf.RequestedAt, rf.ProcessedAt, rf.ProcessedBy)
	return mapErr(err)
}

func (r *refundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Refund, error) {
	row, err := pickRow(ctx, r.pool, tx, forUpdate(`SELECT `+refundColumns+` FROM refunds WHERE id=$1`, tx), id)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Refund, error) {
	row, err := pickRow(ctx, r.pool, tx, forUpdate(`SELECT `+refundColumns+` FROM refunds WHERE payment_id=$1`, tx), paymentID)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from, to model.RefundStatus, upd repository.RefundUpdate) (bool, error) {
	const q = `
UPDATE refunds
   SET status = $3,
       admin_notes = COALESCE($4, admin_notes),
       processed_at = COALESCE($5, processed_at),
       processed_by = COALESCE($6, processed_by)
 WHERE id = $1
   AND status = $2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to), upd.AdminNotes, upd.ProcessedAt, upd.ProcessedBy)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}
