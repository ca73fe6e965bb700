package repository

import (
	"context"
	"time"

	"tutoring-payments/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByIntentID(ctx context.Context, tx Tx, intentID string) (*model.Payment, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.Payment, error)
	// SetGatewayIntent records the charge intent and moves pending -> processing.
	SetGatewayIntent(ctx context.Context, tx Tx, id, intentID string) error
	// TransitionStatus is a compare-and-set: it only updates the row while its
	// status is still `from`, and reports whether it did.
	TransitionStatus(ctx context.Context, tx Tx, id string, from, to model.PaymentStatus, upd StatusUpdate) (bool, error)
	ListStaleProcessing(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	// ExistsCompleted answers the entitlement question for resources and videos.
	ExistsCompleted(ctx context.Context, tx Tx, userID string, kind model.AccessKind, targetID string) (bool, error)
	// ExistsCompletedForSession prevents paying twice for one session.
	ExistsCompletedForSession(ctx context.Context, tx Tx, sessionID string) (bool, error)
}

// StatusUpdate carries the optional columns written alongside a status change.
type StatusUpdate struct {
	CompletedAt      *time.Time
	GatewayReference *string
	GatewayResponse  map[string]any
}

// -----------------------------
// Invoices
// -----------------------------

type InvoiceRepository interface {
	Save(ctx context.Context, tx Tx, inv *model.Invoice) error
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Invoice, error)
	// NextSequence returns the next per-day invoice counter, starting at 1.
	NextSequence(ctx context.Context, tx Tx, day string) (int64, error)
}

// -----------------------------
// Gateway inbox / event outbox
// -----------------------------

type GatewayEventRepository interface {
	// Record inserts the event and reports false if it was already seen.
	Record(ctx context.Context, tx Tx, ev *model.GatewayEvent) (bool, error)
}

type OutboxRepository interface {
	Add(ctx context.Context, tx Tx, msg *model.OutboxMessage) error
	FetchPending(ctx context.Context, tx Tx, limit int) ([]*model.OutboxMessage, error)
	MarkSent(ctx context.Context, tx Tx, id string, sentAt time.Time) error
}
