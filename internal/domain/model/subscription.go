package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
)

// DaysPerMonth is the fixed month length used for subscription windows.
const DaysPerMonth = 30

// Subscription is a tutor's paid-tier access window.
type Subscription struct {
	ID          string
	TutorID     string
	Plan        PlanTier
	StartDate   time.Time
	EndDate     time.Time
	AmountPaid  decimal.Decimal
	Status      SubscriptionStatus
	AutoRenewal bool
	PaymentID   *string // payment that funded the latest extension
	Features    PlanFeatures
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func MonthsToDuration(months int) time.Duration {
	return time.Duration(months*DaysPerMonth) * 24 * time.Hour
}

// NewSubscription starts a window at now.
func NewSubscription(tutorID string, plan PlanTier, months int, p *Payment, now time.Time) (*Subscription, error) {
	if tutorID == "" || months <= 0 || p == nil {
		return nil, domain.ErrInvalidArgument
	}
	features, err := plan.Features()
	if err != nil {
		return nil, err
	}
	pid := p.ID
	return &Subscription{
		ID:         domain.NewUUID(),
		TutorID:    tutorID,
		Plan:       plan,
		StartDate:  now,
		EndDate:    now.Add(MonthsToDuration(months)),
		AmountPaid: p.Amount,
		Status:     SubscriptionStatusActive,
		PaymentID:  &pid,
		Features:   features,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Extend stacks the new window on whatever time is left: the end date moves to
// max(end, now) + months and is never shortened.
func (s *Subscription) Extend(plan PlanTier, months int, p *Payment, now time.Time) error {
	if months <= 0 || p == nil {
		return domain.ErrInvalidArgument
	}
	features, err := plan.Features()
	if err != nil {
		return err
	}
	base := s.EndDate
	if now.After(base) {
		base = now
	}
	pid := p.ID
	s.Plan = plan
	s.Features = features
	s.EndDate = base.Add(MonthsToDuration(months))
	s.AmountPaid = s.AmountPaid.Add(p.Amount)
	s.Status = SubscriptionStatusActive
	s.PaymentID = &pid
	s.UpdatedAt = now
	return nil
}

func (s *Subscription) IsActive(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.EndDate.After(now)
}

func (s *Subscription) DaysRemaining(now time.Time) int {
	if !s.EndDate.After(now) {
		return 0
	}
	return int(s.EndDate.Sub(now).Hours() / 24)
}

// TutorProfile holds the subscription flags the profile/visibility logic reads.
type TutorProfile struct {
	TutorID            string
	SubscriptionActive bool
	SubscriptionExpiry *time.Time
}

type PlanTier string

const (
	PlanBasic        PlanTier = "basic"
	PlanStandard     PlanTier = "standard"
	PlanPremium      PlanTier = "premium"
	PlanProfessional PlanTier = "professional"
)

// PlanFeatures are derived from the tier. Zero limits mean unlimited.
type PlanFeatures struct {
	MaxStudents     int  `json:"max_students"`  // 0 means unlimited
	MaxResources    int  `json:"max_resources"` // 0 means unlimited
	CanCreateGroups bool `json:"can_create_groups"`
	PrioritySupport bool `json:"priority_support"`
	AnalyticsAccess bool `json:"analytics_access"`
}

// PlanOffer is what a tutor can buy from the subscription page.
type PlanOffer struct {
	Tier   PlanTier
	Price  decimal.Decimal
	Months int
}

var planOffers = map[PlanTier]PlanOffer{
	PlanBasic:        {Tier: PlanBasic, Price: decimal.NewFromInt(50), Months: 1},
	PlanStandard:     {Tier: PlanStandard, Price: decimal.NewFromInt(120), Months: 3},
	PlanPremium:      {Tier: PlanPremium, Price: decimal.NewFromInt(200), Months: 6},
	PlanProfessional: {Tier: PlanProfessional, Price: decimal.NewFromInt(350), Months: 12},
}

func ParsePlanTier(s string) (PlanTier, error) {
	t := PlanTier(s)
	if _, ok := planOffers[t]; !ok {
		return "", fmt.Errorf("%w: unknown plan %q", domain.ErrInvalidArgument, s)
	}
	return t, nil
}

func (t PlanTier) Offer() (PlanOffer, error) {
	o, ok := planOffers[t]
	if !ok {
		return PlanOffer{}, fmt.Errorf("%w: unknown plan %q", domain.ErrInvalidArgument, string(t))
	}
	return o, nil
}

func (t PlanTier) Features() (PlanFeatures, error) {
	switch t {
	case PlanBasic:
		return PlanFeatures{MaxStudents: 10, MaxResources: 50}, nil
	case PlanStandard:
		return PlanFeatures{MaxStudents: 25, MaxResources: 200, AnalyticsAccess: true}, nil
	case PlanPremium:
		return PlanFeatures{CanCreateGroups: true, PrioritySupport: true, AnalyticsAccess: true}, nil
	case PlanProfessional:
		return PlanFeatures{CanCreateGroups: true, PrioritySupport: true, AnalyticsAccess: true}, nil
	default:
		return PlanFeatures{}, fmt.Errorf("%w: unknown plan %q", domain.ErrInvalidArgument, string(t))
	}
}
