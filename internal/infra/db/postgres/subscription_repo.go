package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, tutor_id, plan, start_date, end_date, amount_paid, status, auto_renewal, payment_id,
  max_students, max_resources, can_create_groups, priority_support, analytics_access, created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	f := &s.Features
	if err := row.Scan(&s.ID, &s.TutorID, &s.Plan, &s.StartDate, &s.EndDate, &s.AmountPaid, &s.Status, &s.AutoRenewal,
		&s.PaymentID, &f.MaxStudents, &f.MaxResources, &f.CanCreateGroups, &f.PrioritySupport, &f.AnalyticsAccess,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return s, nil
}

// Save upserts on tutor_id: one subscription row per tutor.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (tutor_id) DO UPDATE SET
  plan=$3, end_date=$5, amount_paid=$6, status=$7, auto_renewal=$8, payment_id=$9,
  max_students=$10, max_resources=$11, can_create_groups=$12, priority_support=$13, analytics_access=$14,
  updated_at=$16;`
	f := s.Features
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.TutorID, s.Plan, s.StartDate, s.EndDate, s.AmountPaid, s.Status,
		s.AutoRenewal, s.PaymentID, f.MaxStudents, f.MaxResources, f.CanCreateGroups, f.PrioritySupport,
		f.AnalyticsAccess, s.CreatedAt, s.UpdatedAt)
	return mapErr(err)
}

func (r *subscriptionRepo) FindByTutor(ctx context.Context, tx repository.Tx, tutorID string) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, forUpdate(`SELECT `+subscriptionColumns+` FROM subscriptions WHERE tutor_id=$1`, tx), tutorID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) ListDueForExpiry(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions
WHERE status='active' AND end_date <= $1 ORDER BY end_date ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err())
}

func (r *subscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus) error {
	const q = `UPDATE subscriptions SET status=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, string(status))
	return mapErr(err)
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var st model.SubscriptionStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, mapScanErr(err)
		}
		out[st] = n
	}
	return out, mapErr(rows.Err())
}

// -----------------------------
// Tutor profiles
// -----------------------------

var _ repository.ProfileRepository = (*profileRepo)(nil)

type profileRepo struct{ pool *pgxpool.Pool }

func NewProfileRepo(pool *pgxpool.Pool) *profileRepo {
	return &profileRepo{pool: pool}
}

func (r *profileRepo) SetSubscriptionFlags(ctx context.Context, tx repository.Tx, tutorID string, active bool, expiry *time.Time) error {
	const q = `
INSERT INTO tutor_profiles (tutor_id, subscription_active, subscription_expiry) VALUES ($1,$2,$3)
ON CONFLICT (tutor_id) DO UPDATE SET subscription_active=$2, subscription_expiry=$3;`
	_, err := execSQL(ctx, r.pool, tx, q, tutorID, active, expiry)
	return mapErr(err)
}

func (r *profileRepo) FindByTutor(ctx context.Context, tx repository.Tx, tutorID string) (*model.TutorProfile, error) {
	const q = `SELECT tutor_id, subscription_active, subscription_expiry FROM tutor_profiles WHERE tutor_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, tutorID)
	if err != nil {
		return nil, err
	}
	p := &model.TutorProfile{}
	if err := row.Scan(&p.TutorID, &p.SubscriptionActive, &p.SubscriptionExpiry); err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}
