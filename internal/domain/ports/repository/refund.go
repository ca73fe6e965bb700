package repository

import (
	"context"
	"time"

	"tutoring-payments/internal/domain/model"
)

type RefundRepository interface {
	// Create fails with domain.ErrAlreadyExists when the payment already has a refund.
	Create(ctx context.Context, tx Tx, r *model.Refund) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Refund, error)
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Refund, error)
	// TransitionStatus is a compare-and-set on the refund status.
	TransitionStatus(ctx context.Context, tx Tx, id string, from, to model.RefundStatus, upd RefundUpdate) (bool, error)
}

type RefundUpdate struct {
	AdminNotes  *string
	ProcessedAt *time.Time
	ProcessedBy *string
}
