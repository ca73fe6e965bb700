package usecase

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/repository"
	"tutoring-payments/internal/infra/logging"
	"tutoring-payments/internal/infra/metrics"
)

// Compile-time check
var _ WalletUseCase = (*walletUC)(nil)

// WalletUseCase owns balance mutation and the append-only ledger of one user's wallet.
type WalletUseCase interface {
	Get(ctx context.Context, userID string) (*model.Wallet, error)
	History(ctx context.Context, userID string, limit int) ([]*model.WalletTransaction, error)
	HasSufficientBalance(ctx context.Context, userID string, amount decimal.Decimal) (bool, error)

	Credit(ctx context.Context, userID string, amount decimal.Decimal, description, reference string) (*model.WalletTransaction, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal, description, reference string) (*model.WalletTransaction, error)

	// CreditTx and DebitTx run inside a caller-owned transaction.
	CreditTx(ctx context.Context, tx repository.Tx, userID string, amount decimal.Decimal, description, reference string) (*model.WalletTransaction, error)
	DebitTx(ctx context.Context, tx repository.Tx, userID string, amount decimal.Decimal, description, reference string) (*model.WalletTransaction, error)
}

type walletUC struct {
	wallets repository.WalletRepository
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewWalletUseCase(wallets repository.WalletRepository, tm repository.TransactionManager, logger *zerolog.Logger) *walletUC {
	l := logger.With().Str("component", "WalletUC").Logger()
	return &walletUC{wallets: wallets, tm: tm, log: &l}
}

func (u *walletUC) Get(ctx context.Context, userID string) (*model.Wallet, error) {
	return u.wallets.GetOrCreate(ctx, nil, userID)
}

func (u *walletUC) History(ctx context.Context, userID string, limit int) ([]*model.WalletTransaction, error) {
	w, err := u.wallets.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return u.wallets.ListTransactions(ctx, nil, w.ID, limit)
}

func (u *walletUC) HasSufficientBalance(ctx context.Context, userID string, amount decimal.Decimal) (bool, error) {
	w, err := u.wallets.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return false, err
	}
	return w.HasSufficientBalance(amount), nil
}

func (u *walletUC) Credit(ctx context.Context, userID string, amount decimal.Decimal, description, reference string) (*model.WalletTransaction, error) {
	var out *model.WalletTransaction
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t, err := u.CreditTx(ctx, tx, userID, amount, description, reference)
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *walletUC) Debit(ctx context.Context, userID string, amount decimal.Decimal, description, reference string) (*model.WalletTransaction, error) {
	var out *model.WalletTransaction
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t, err := u.DebitTx(ctx, tx, userID, amount, description, reference)
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *walletUC) CreditTx(ctx context.Context, tx repository.Tx, userID string, amount decimal.Decimal, description, reference string) (*model.WalletTransaction, error) {
	return u.mutate(ctx, tx, userID, model.DirectionCredit, amount, description, reference)
}

func (u *walletUC) DebitTx(ctx context.Context, tx repository.Tx, userID string, amount decimal.Decimal, description, reference string) (*model.WalletTransaction, error) {
	return u.mutate(ctx, tx, userID, model.DirectionDebit, amount, description, reference)
}

// mutate validates against the locked wallet row, applies the delta with an
// atomic conditional update and appends exactly one ledger entry.
func (u *walletUC) mutate(ctx context.Context, tx repository.Tx, userID string, dir model.TransactionDirection, amount decimal.Decimal, description, reference string) (*model.WalletTransaction, error) {
	defer logging.TraceDuration(u.log, "WalletUC."+string(dir))()

	w, err := u.wallets.GetOrCreate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := w.Apply(dir, amount); err != nil {
		metrics.IncWalletOperation(string(dir), "rejected")
		return nil, err
	}

	var balance decimal.Decimal
	if dir == model.DirectionCredit {
		balance, err = u.wallets.Credit(ctx, tx, w.ID, amount)
	} else {
		balance, err = u.wallets.Debit(ctx, tx, w.ID, amount)
	}
	if err != nil {
		metrics.IncWalletOperation(string(dir), "rejected")
		return nil, err
	}

	entry := model.NewWalletTransaction(w.ID, dir, amount, balance, description, reference)
	if err := u.wallets.AppendTransaction(ctx, tx, entry); err != nil {
		return nil, err
	}
	metrics.IncWalletOperation(string(dir), "ok")
	logging.With(ctx, u.log).Info().
		Str("wallet_id", w.ID).
		Str("direction", string(dir)).
		Str("amount", amount.StringFixed(model.MoneyScale)).
		Str("balance_after", balance.StringFixed(model.MoneyScale)).
		Msg("wallet updated")
	return entry, nil
}
