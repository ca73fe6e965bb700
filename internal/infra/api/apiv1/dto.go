package apiv1

import (
	"time"

	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain/model"
)

// Amounts travel as fixed two-place strings.

func money(d decimal.Decimal) string { return d.StringFixed(model.MoneyScale) }

type Payment struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	Type             string         `json:"type"`
	Amount           string         `json:"amount"`
	Currency         string         `json:"currency"`
	Method           string         `json:"method"`
	Status           string         `json:"status"`
	SessionID        *string        `json:"session_id,omitempty"`
	ResourceID       *string        `json:"resource_id,omitempty"`
	VideoID          *string        `json:"video_id,omitempty"`
	GatewayReference string         `json:"gateway_reference,omitempty"`
	Description      string         `json:"description,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

func toPayment(p *model.Payment) Payment {
	return Payment{
		ID:               p.ID,
		UserID:           p.UserID,
		Type:             string(p.Type),
		Amount:           money(p.Amount),
		Currency:         p.Currency,
		Method:           string(p.Method),
		Status:           string(p.Status),
		SessionID:        p.SessionID,
		ResourceID:       p.ResourceID,
		VideoID:          p.VideoID,
		GatewayReference: p.GatewayReference,
		Description:      p.Description,
		Metadata:         p.Metadata,
		CreatedAt:        p.CreatedAt,
		CompletedAt:      p.CompletedAt,
	}
}

type Checkout struct {
	Payment      Payment `json:"payment"`
	ClientSecret string  `json:"client_secret,omitempty"`
}

type Wallet struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Balance  string `json:"balance"`
	IsActive bool   `json:"is_active"`
}

func toWallet(w *model.Wallet) Wallet {
	return Wallet{ID: w.ID, UserID: w.UserID, Balance: money(w.Balance), IsActive: w.IsActive}
}

type WalletTransaction struct {
	ID           string    `json:"id"`
	Direction    string    `json:"direction"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	Description  string    `json:"description,omitempty"`
	Reference    string    `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toWalletTransaction(t *model.WalletTransaction) WalletTransaction {
	return WalletTransaction{
		ID:           t.ID,
		Direction:    string(t.Direction),
		Amount:       money(t.Amount),
		BalanceAfter: money(t.BalanceAfter),
		Description:  t.Description,
		Reference:    t.Reference,
		CreatedAt:    t.CreatedAt,
	}
}

type Refund struct {
	ID           string     `json:"id"`
	PaymentID    string     `json:"payment_id"`
	Reason       string     `json:"reason"`
	ReasonDetail string     `json:"reason_detail,omitempty"`
	Amount       string     `json:"amount"`
	Status       string     `json:"status"`
	AdminNotes   string     `json:"admin_notes,omitempty"`
	RequestedAt  time.Time  `json:"requested_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ProcessedBy  *string    `json:"processed_by,omitempty"`
}

func toRefund(r *model.Refund) Refund {
	return Refund{
		ID:           r.ID,
		PaymentID:    r.PaymentID,
		Reason:       string(r.Reason),
		ReasonDetail: r.ReasonDetail,
		Amount:       money(r.Amount),
		Status:       string(r.Status),
		AdminNotes:   r.AdminNotes,
		RequestedAt:  r.RequestedAt,
		ProcessedAt:  r.ProcessedAt,
		ProcessedBy:  r.ProcessedBy,
	}
}

type Invoice struct {
	ID            string     `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	PaymentID     string     `json:"payment_id"`
	Subtotal      string     `json:"subtotal"`
	TaxAmount     string     `json:"tax_amount"`
	TotalAmount   string     `json:"total_amount"`
	IssueDate     time.Time  `json:"issue_date"`
	DueDate       time.Time  `json:"due_date"`
	IsPaid        bool       `json:"is_paid"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

func toInvoice(i *model.Invoice) Invoice {
	return Invoice{
		ID:            i.ID,
		InvoiceNumber: i.InvoiceNumber,
		PaymentID:     i.PaymentID,
		Subtotal:      money(i.Subtotal),
		TaxAmount:     money(i.TaxAmount),
		TotalAmount:   money(i.TotalAmount),
		IssueDate:     i.IssueDate,
		DueDate:       i.DueDate,
		IsPaid:        i.IsPaid,
		PaidAt:        i.PaidAt,
	}
}

type Subscription struct {
	ID            string             `json:"id"`
	TutorID       string             `json:"tutor_id"`
	Plan          string             `json:"plan"`
	Status        string             `json:"status"`
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	DaysRemaining int                `json:"days_remaining"`
	AmountPaid    string             `json:"amount_paid"`
	Features      model.PlanFeatures `json:"features"`
}

func toSubscription(s *model.Subscription, now time.Time) Subscription {
	return Subscription{
		ID:            s.ID,
		TutorID:       s.TutorID,
		Plan:          string(s.Plan),
		Status:        string(s.Status),
		StartDate:     s.StartDate,
		EndDate:       s.EndDate,
		DaysRemaining: s.DaysRemaining(now),
		AmountPaid:    money(s.AmountPaid),
		Features:      s.Features,
	}
}
