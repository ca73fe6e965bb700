package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain"
	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/repository"
)

var _ repository.WalletRepository = (*walletRepo)(nil)

type walletRepo struct{ pool *pgxpool.Pool }

func NewWalletRepo(pool *pgxpool.Pool) *walletRepo {
	return &walletRepo{pool: pool}
}

func (r *walletRepo) GetOrCreate(ctx context.Context, tx repository.Tx, userID string) (*model.Wallet, error) {
	w, err := model.NewWallet(userID)
	if err != nil {
		return nil, err
	}
	const ins = `INSERT INTO wallets (id, user_id, balance, is_active, created_at, updated_at)
VALUES ($1,$2,0,TRUE,$3,$3) ON CONFLICT (user_id) DO NOTHING;`
	if _, err := execSQL(ctx, r.pool, tx, ins, w.ID, w.UserID, w.CreatedAt); err != nil {
		return nil, mapErr(err)
	}

	q := forUpdate(`SELECT id, user_id, balance, is_active, created_at, updated_at FROM wallets WHERE user_id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	out := &model.Wallet{}
	if err := row.Scan(&out.ID, &out.UserID, &out.Balance, &out.IsActive, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return out, nil
}

func (r *walletRepo) Credit(ctx context.Context, tx repository.Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	const q = `UPDATE wallets SET balance = balance + $2, updated_at = NOW() WHERE id = $1 RETURNING balance;`
	row, err := pickRow(ctx, r.pool, tx, q, walletID, amount)
	if err != nil {
		return decimal.Zero, err
	}
	var bal decimal.Decimal
	if err := row.Scan(&bal); err != nil {
		return decimal.Zero, mapScanErr(err)
	}
	return bal, nil
}

// Debit is a single conditional update: no row comes back when the balance
// does not cover amount.
func (r *walletRepo) Debit(ctx context.Context, tx repository.Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	const q = `UPDATE wallets SET balance = balance - $2, updated_at = NOW()
WHERE id = $1 AND balance >= $2 RETURNING balance;`
	row, err := pickRow(ctx, r.pool, tx, q, walletID, amount)
	if err != nil {
		return decimal.Zero, err
	}
	var bal decimal.Decimal
	if err := row.Scan(&bal); err != nil {
		err = mapScanErr(err)
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, domain.ErrInsufficientBalance
		}
		return decimal.Zero, err
	}
	return bal, nil
}

func (r *walletRepo) AppendTransaction(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) error {
	const q = `INSERT INTO wallet_transactions (id, wallet_id, direction, amount, balance_after, description, reference, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.WalletID, t.Direction, t.Amount, t.BalanceAfter, t.Description, t.Reference, t.CreatedAt)
	return mapErr(err)
}

// ListTransactions returns newest first; ULID ids sort by creation time.
func (r *walletRepo) ListTransactions(ctx context.Context, tx repository.Tx, walletID string, limit int) ([]*model.WalletTransaction, error) {
	const q = `SELECT id, wallet_id, direction, amount, balance_after, description, reference, created_at
FROM wallet_transactions WHERE wallet_id=$1 ORDER BY id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, walletID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.WalletTransaction
	for rows.Next() {
		t := &model.WalletTransaction{}
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Direction, &t.Amount, &t.BalanceAfter, &t.Description, &t.Reference, &t.CreatedAt); err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, t)
	}
	return out, mapErr(rows.Err())
}
