package repository

import (
	"context"
	"time"

	"tutoring-payments/internal/domain/model"
)

// SubscriptionRepository is the port for tutor subscriptions (one per tutor).
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByTutor(ctx context.Context, tx Tx, tutorID string) (*model.Subscription, error)
	ListDueForExpiry(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Subscription, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.SubscriptionStatus) error
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}

// ProfileRepository writes the tutor profile's subscription flags.
type ProfileRepository interface {
	SetSubscriptionFlags(ctx context.Context, tx Tx, tutorID string, active bool, expiry *time.Time) error
	FindByTutor(ctx context.Context, tx Tx, tutorID string) (*model.TutorProfile, error)
}

// SessionRepository reads tutoring sessions and confirms them on payment.
type SessionRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.TutoringSession, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.SessionStatus) error
}
