package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain"
)

// Invoice is issued, already paid, for every completed payment.
type Invoice struct {
	ID            string
	InvoiceNumber string
	UserID        string
	PaymentID     string
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	IssueDate     time.Time
	DueDate       time.Time
	IsPaid        bool
	PaidAt        *time.Time
}

// InvoiceDay is the per-day key the invoice number sequence is scoped to.
func InvoiceDay(t time.Time) string { return t.UTC().Format("20060102") }

// FormatInvoiceNumber renders INV<yyyymmdd><nnn>.
func FormatInvoiceNumber(day string, seq int64) string {
	return fmt.Sprintf("INV%s%03d", day, seq)
}

// NewPaidInvoice splits the payment total into subtotal and tax at taxRate
// (e.g. 0.15). The payment amount is the gross total the user was charged.
func NewPaidInvoice(p *Payment, number string, taxRate decimal.Decimal, dueIn time.Duration, now time.Time) (*Invoice, error) {
	if p == nil || p.CompletedAt == nil || number == "" {
		return nil, domain.ErrInvalidArgument
	}
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("%w: negative tax rate", domain.ErrInvalidArgument)
	}
	subtotal := p.Amount.Div(decimal.NewFromInt(1).Add(taxRate)).Round(MoneyScale)
	paidAt := *p.CompletedAt
	return &Invoice{
		ID:            domain.NewUUID(),
		InvoiceNumber: number,
		UserID:        p.UserID,
		PaymentID:     p.ID,
		Subtotal:      subtotal,
		TaxAmount:     p.Amount.Sub(subtotal),
		TotalAmount:   p.Amount,
		IssueDate:     now,
		DueDate:       now.Add(dueIn),
		IsPaid:        true,
		PaidAt:        &paidAt,
	}, nil
}
