package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/repository"
)

var _ repository.InvoiceRepository = (*invoiceRepo)(nil)

type invoiceRepo struct{ pool *pgxpool.Pool }

func NewInvoiceRepo(pool *pgxpool.Pool) *invoiceRepo {
	return &invoiceRepo{pool: pool}
}

func (r *invoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	const q = `
INSERT INTO invoices (id, invoice_number, user_id, payment_id, subtotal, tax_amount, total_amount, issue_date, due_date, is_paid, paid_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`
	_, err := execSQL(ctx, r.pool, tx, q, inv.ID, inv.InvoiceNumber, inv.UserID, inv.PaymentID, inv.Subtotal,
		inv.TaxAmount, inv.TotalAmount, inv.IssueDate, inv.DueDate, inv.IsPaid, inv.PaidAt)
	return mapErr(err)
}

func (r *invoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	const q = `SELECT id, invoice_number, user_id, payment_id, subtotal, tax_amount, total_amount, issue_date, due_date, is_paid, paid_at
FROM invoices WHERE payment_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	inv := &model.Invoice{}
	if err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.UserID, &inv.PaymentID, &inv.Subtotal, &inv.TaxAmount,
		&inv.TotalAmount, &inv.IssueDate, &inv.DueDate, &inv.IsPaid, &inv.PaidAt); err != nil {
		return nil, mapScanErr(err)
	}
	return inv, nil
}

// NextSequence bumps the per-day counter atomically; concurrent completions
// on the same day serialize on the counter row.
func (r *invoiceRepo) NextSequence(ctx context.Context, tx repository.Tx, day string) (int64, error) {
	const q = `
INSERT INTO invoice_sequences (day, last) VALUES ($1, 1)
ON CONFLICT (day) DO UPDATE SET last = invoice_sequences.last + 1
RETURNING last;`
	row, err := pickRow(ctx, r.pool, tx, q, day)
	if err != nil {
		return 0, err
	}
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, mapScanErr(err)
	}
	return seq, nil
}
