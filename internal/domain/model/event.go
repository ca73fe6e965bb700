package model

import (
	"encoding/json"
	"time"

	"tutoring-payments/internal/domain"
)

// Event topics published through the outbox.
const (
	TopicPaymentCompleted      = "payment.completed"
	TopicPaymentFailed         = "payment.failed"
	TopicRefundRequested       = "refund.requested"
	TopicRefundProcessed       = "refund.processed"
	TopicSubscriptionActivated = "subscription.activated"
)

// AllTopics lists every topic the outbox can emit.
var AllTopics = []string{
	TopicPaymentCompleted,
	TopicPaymentFailed,
	TopicRefundRequested,
	TopicRefundProcessed,
	TopicSubscriptionActivated,
}

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
)

// OutboxMessage is written in the same transaction as the state change it announces.
type OutboxMessage struct {
	ID        string
	Topic     string
	Key       string
	Payload   []byte
	Status    OutboxStatus
	CreatedAt time.Time
	SentAt    *time.Time
}

func NewOutboxMessage(topic, key string, body any) (*OutboxMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		ID:        domain.NewULID(),
		Topic:     topic,
		Key:       key,
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: time.Now(),
	}, nil
}

// PaymentEvent is the outbox body for payment topics.
type PaymentEvent struct {
	PaymentID string        `json:"payment_id"`
	UserID    string        `json:"user_id"`
	Type      PaymentType   `json:"type"`
	Amount    string        `json:"amount"`
	Currency  string        `json:"currency"`
	Status    PaymentStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
}

func NewPaymentEvent(p *Payment, errMsg string) PaymentEvent {
	return PaymentEvent{
		PaymentID: p.ID,
		UserID:    p.UserID,
		Type:      p.Type,
		Amount:    p.Amount.StringFixed(MoneyScale),
		Currency:  p.Currency,
		Status:    p.Status,
		Timestamp: time.Now().UTC(),
		Error:     errMsg,
	}
}

// RefundEvent is the outbox body for refund topics.
type RefundEvent struct {
	RefundID  string       `json:"refund_id"`
	PaymentID string       `json:"payment_id"`
	Amount    string       `json:"amount"`
	Status    RefundStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// SubscriptionEvent is the outbox body for subscription.activated.
type SubscriptionEvent struct {
	SubscriptionID string    `json:"subscription_id"`
	TutorID        string    `json:"tutor_id"`
	Plan           PlanTier  `json:"plan"`
	EndDate        time.Time `json:"end_date"`
	PaymentID      string    `json:"payment_id"`
}

// GatewayEvent is the inbox row that makes notification handling idempotent
// per provider event id.
type GatewayEvent struct {
	EventID    string
	IntentID   string
	Type       string
	ReceivedAt time.Time
}
