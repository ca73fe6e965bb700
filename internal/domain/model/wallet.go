package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain"
)

type TransactionDirection string

const (
	DirectionCredit TransactionDirection = "credit"
	DirectionDebit  TransactionDirection = "debit"
)

// Wallet is a per-user stored-value balance. Balance never goes negative.
type Wallet struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewWallet(userID string) (*Wallet, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Wallet{
		ID:        domain.NewUUID(),
		UserID:    userID,
		Balance:   decimal.Zero,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (w *Wallet) HasSufficientBalance(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// Apply returns the balance that results from moving amount in direction,
// without mutating the wallet. It is the single place the ledger rules live.
func (w *Wallet) Apply(direction TransactionDirection, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	switch direction {
	case DirectionCredit:
		return w.Balance.Add(amount), nil
	case DirectionDebit:
		if !w.HasSufficientBalance(amount) {
			return decimal.Zero, InsufficientBalance(w.Balance, amount)
		}
		return w.Balance.Sub(amount), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidArgument, direction)
	}
}

// InsufficientBalance wraps domain.ErrInsufficientBalance with the numbers the
// user needs to pick another amount or method.
func InsufficientBalance(balance, required decimal.Decimal) error {
	return fmt.Errorf("%w: balance %s, required %s", domain.ErrInsufficientBalance,
		balance.StringFixed(MoneyScale), required.StringFixed(MoneyScale))
}

// WalletTransaction is an immutable ledger entry; one per balance change.
type WalletTransaction struct {
	ID           string
	WalletID     string
	Direction    TransactionDirection
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Description  string
	Reference    string
	CreatedAt    time.Time
}

func NewWalletTransaction(walletID string, direction TransactionDirection, amount, balanceAfter decimal.Decimal, description, reference string) *WalletTransaction {
	return &WalletTransaction{
		ID:           domain.NewULID(),
		WalletID:     walletID,
		Direction:    direction,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  description,
		Reference:    reference,
		CreatedAt:    time.Now(),
	}
}
