package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain/model"
)

// -----------------------------
// Wallets
// -----------------------------

type WalletRepository interface {
	// GetOrCreate returns the user's wallet, creating an empty one on first access.
	// With a transaction handle the row is locked for the rest of the transaction.
	GetOrCreate(ctx context.Context, tx Tx, userID string) (*model.Wallet, error)
	// Credit atomically adds amount and returns the new balance.
	Credit(ctx context.Context, tx Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error)
	// Debit atomically subtracts amount only if the balance covers it; otherwise
	// it returns domain.ErrInsufficientBalance and changes nothing.
	Debit(ctx context.Context, tx Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error)
	AppendTransaction(ctx context.Context, tx Tx, t *model.WalletTransaction) error
	ListTransactions(ctx context.Context, tx Tx, walletID string, limit int) ([]*model.WalletTransaction, error)
}
