package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"tutoring-payments/internal/domain"
	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*sessionRepo)(nil)

// sessionRepo reads the scheduling side's tutoring_sessions table.
type sessionRepo struct{ pool *pgxpool.Pool }

func NewSessionRepo(pool *pgxpool.Pool) *sessionRepo {
	return &sessionRepo{pool: pool}
}

func (r *sessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.TutoringSession, error) {
	q := forUpdate(`SELECT id, student_id, tutor_id, title, total_amount, status FROM tutoring_sessions WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	s := &model.TutoringSession{}
	if err := row.Scan(&s.ID, &s.StudentID, &s.TutorID, &s.Title, &s.TotalAmount, &s.Status); err != nil {
		return nil, mapScanErr(err)
	}
	return s, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SessionStatus) error {
	cmd, err := execSQL(ctx, r.pool, tx, `UPDATE tutoring_sessions SET status=$2 WHERE id=$1;`, id, string(status))
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
