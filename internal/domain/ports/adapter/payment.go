package adapter

import (
	"context"
	"errors"
	"time"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// ChargeIntent is what the gateway returns when a charge is set up; the client
// secret goes back to the browser/app that confirms the charge.
type ChargeIntent struct {
	ID           string
	ClientSecret string
}

type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "pending"
	IntentStatusSucceeded IntentStatus = "succeeded"
	IntentStatusFailed    IntentStatus = "failed"
	IntentStatusCancelled IntentStatus = "cancelled"
)

// Gateway notification types.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// Notification is a verified, decoded gateway callback.
type Notification struct {
	EventID  string
	Type     string
	IntentID string
	// Metadata echoes what CreateChargeIntent was tagged with.
	Metadata map[string]string
	// Reference is the provider transaction reference, when reported.
	Reference string
	// FailureMessage is set on payment_failed events.
	FailureMessage string
	Raw            map[string]any
}

// PaymentGateway is the hex port for card and mobile-money processors.
type PaymentGateway interface {
	Name() string

	// CreateChargeIntent sets up a charge for amountMinor (pesewas/cents) and
	// tags it with metadata; metadata["payment_id"] correlates notifications.
	CreateChargeIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (ChargeIntent, error)
	// RetrieveIntent returns the current state of a charge, used when a
	// notification never arrived.
	RetrieveIntent(ctx context.Context, intentID string) (IntentStatus, error)
}

// Locker serializes work on a key across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// EventPublisher delivers outbox payloads to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}
