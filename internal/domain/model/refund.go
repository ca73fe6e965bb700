package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain"
)

type RefundReason string

const (
	RefundReasonSessionCancelled RefundReason = "session_cancelled"
	RefundReasonPoorQuality      RefundReason = "poor_quality"
	RefundReasonTechnicalIssues  RefundReason = "technical_issues"
	RefundReasonDuplicatePayment RefundReason = "duplicate_payment"
	RefundReasonUnauthorized     RefundReason = "unauthorized"
	RefundReasonOther            RefundReason = "other"
)

func ParseRefundReason(s string) (RefundReason, error) {
	switch r := RefundReason(s); r {
	case RefundReasonSessionCancelled, RefundReasonPoorQuality, RefundReasonTechnicalIssues,
		RefundReasonDuplicatePayment, RefundReasonUnauthorized, RefundReasonOther:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown refund reason %q", domain.ErrInvalidArgument, s)
	}
}

type RefundStatus string

const (
	RefundStatusRequested   RefundStatus = "requested"
	RefundStatusUnderReview RefundStatus = "under_review"
	RefundStatusApproved    RefundStatus = "approved"
	RefundStatusRejected    RefundStatus = "rejected"
	RefundStatusProcessed   RefundStatus = "processed"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundStatusRequested:   {RefundStatusUnderReview},
	RefundStatusUnderReview: {RefundStatusApproved, RefundStatusRejected},
	RefundStatusApproved:    {RefundStatusProcessed},
}

// CanTransitionTo keeps processed reachable only through approved.
func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	for _, allowed := range refundTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Refund is the administrative reversal request for a completed Payment.
type Refund struct {
	ID           string
	PaymentID    string
	Reason       RefundReason
	ReasonDetail string
	Amount       decimal.Decimal
	Status       RefundStatus
	AdminNotes   string
	RequestedAt  time.Time
	ProcessedAt  *time.Time
	ProcessedBy  *string
}

// NewRefund validates a request against the payment it reverses. A nil amount
// means the full payment amount.
func NewRefund(p *Payment, reason RefundReason, detail string, amount *decimal.Decimal) (*Refund, error) {
	if p == nil {
		return nil, domain.ErrInvalidArgument
	}
	if p.Status != PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: payment status is %s", domain.ErrNotEligible, p.Status)
	}
	amt := p.Amount
	if amount != nil {
		amt = *amount
	}
	if err := ValidateAmount(amt); err != nil {
		return nil, err
	}
	if amt.GreaterThan(p.Amount) {
		return nil, fmt.Errorf("%w: refund %s exceeds payment amount %s", domain.ErrInvalidAmount,
			amt.StringFixed(MoneyScale), p.Amount.StringFixed(MoneyScale))
	}
	return &Refund{
		ID:           domain.NewUUID(),
		PaymentID:    p.ID,
		Reason:       reason,
		ReasonDetail: detail,
		Amount:       amt,
		Status:       RefundStatusRequested,
		RequestedAt:  time.Now(),
	}, nil
}

// ResultingPaymentStatus is the payment status a processed refund implies.
func (r *Refund) ResultingPaymentStatus(p *Payment) PaymentStatus {
	if r.Amount.LessThan(p.Amount) {
		return PaymentStatusPartiallyRefunded
	}
	return PaymentStatusRefunded
}
