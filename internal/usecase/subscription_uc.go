package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"tutoring-payments/internal/domain"
	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/repository"
	"tutoring-payments/internal/infra/logging"
	"tutoring-payments/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// Activate creates or extends the tutor's subscription from a completed
	// subscription payment.
	Activate(ctx context.Context, tutorID string, p *model.Payment) (*model.Subscription, error)
	ActivateTx(ctx context.Context, tx repository.Tx, tutorID string, p *model.Payment) (*model.Subscription, error)
	Get(ctx context.Context, tutorID string) (*model.Subscription, error)
	// ExpireDue marks every active subscription whose window ended as expired
	// and clears the profile flag. Returns how many were expired.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type subscriptionUC struct {
	subs     repository.SubscriptionRepository
	profiles repository.ProfileRepository
	outbox   repository.OutboxRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	profiles repository.ProfileRepository,
	outbox repository.OutboxRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{
		subs:     subs,
		profiles: profiles,
		outbox:   outbox,
		tm:       tm,
		log:      &l,
		now:      time.Now,
	}
}

func (u *subscriptionUC) Get(ctx context.Context, tutorID string) (*model.Subscription, error) {
	return u.subs.FindByTutor(ctx, nil, tutorID)
}

func (u *subscriptionUC) Activate(ctx context.Context, tutorID string, p *model.Payment) (*model.Subscription, error) {
	var out *model.Subscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := u.ActivateTx(ctx, tx, tutorID, p)
		out = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *subscriptionUC) ActivateTx(ctx context.Context, tx repository.Tx, tutorID string, p *model.Payment) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Activate")()

	if p == nil {
		return nil, domain.ErrInvalidArgument
	}
	if p.Type != model.PaymentTypeSubscription {
		return nil, fmt.Errorf("%w: payment %s has type %s", domain.ErrInvalidPaymentType, p.ID, p.Type)
	}
	plan, months, err := planFromMetadata(p)
	if err != nil {
		return nil, err
	}

	now := u.now()
	sub, err := u.subs.FindByTutor(ctx, tx, tutorID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		sub, err = model.NewSubscription(tutorID, plan, months, p, now)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := sub.Extend(plan, months, p, now); err != nil {
			return nil, err
		}
	}

	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return nil, err
	}
	expiry := sub.EndDate
	if err := u.profiles.SetSubscriptionFlags(ctx, tx, tutorID, true, &expiry); err != nil {
		return nil, err
	}

	msg, err := model.NewOutboxMessage(model.TopicSubscriptionActivated, sub.TutorID, model.SubscriptionEvent{
		SubscriptionID: sub.ID,
		TutorID:        sub.TutorID,
		Plan:           sub.Plan,
		EndDate:        sub.EndDate,
		PaymentID:      p.ID,
	})
	if err != nil {
		return nil, err
	}
	if err := u.outbox.Add(ctx, tx, msg); err != nil {
		return nil, err
	}

	metrics.IncSubscriptionActivated(string(plan))
	u.log.Info().
		Str("tutor_id", tutorID).
		Str("plan", string(plan)).
		Time("end_date", sub.EndDate).
		Msg("subscription activated")
	return sub, nil
}

// planFromMetadata reads {plan, months} stamped on the payment at checkout.
func planFromMetadata(p *model.Payment) (model.PlanTier, int, error) {
	plan, err := model.ParsePlanTier(p.MetaString("plan"))
	if err != nil {
		return "", 0, err
	}
	months, ok := p.MetaInt("months")
	if !ok {
		months = 1
	}
	if months <= 0 {
		return "", 0, fmt.Errorf("%w: months must be positive", domain.ErrInvalidArgument)
	}
	return plan, months, nil
}

func (u *subscriptionUC) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := u.subs.ListDueForExpiry(ctx, nil, now, 200)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, s := range due {
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			cur, err := u.subs.FindByTutor(ctx, tx, s.TutorID)
			if err != nil {
				return err
			}
			// renewed between the scan and the lock
			if cur.Status != model.SubscriptionStatusActive || cur.EndDate.After(now) {
				return errSkip
			}
			if err := u.subs.UpdateStatus(ctx, tx, cur.ID, model.SubscriptionStatusExpired); err != nil {
				return err
			}
			return u.profiles.SetSubscriptionFlags(ctx, tx, cur.TutorID, false, &cur.EndDate)
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			u.log.Error().Err(err).Str("tutor_id", s.TutorID).Msg("expire subscription failed")
			continue
		}
		n++
	}
	return n, nil
}

var errSkip = errors.New("skip")
