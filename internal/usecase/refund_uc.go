package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain"
	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/repository"
	"tutoring-payments/internal/infra/logging"
	"tutoring-payments/internal/infra/metrics"
)

// Compile-time check
var _ RefundUseCase = (*refundUC)(nil)

type RefundUseCase interface {
	Request(ctx context.Context, in RefundInput) (*model.Refund, error)
	Get(ctx context.Context, refundID string) (*model.Refund, error)
	GetByPayment(ctx context.Context, paymentID string) (*model.Refund, error)

	// Admin actions. Each is a compare-and-set on the refund status.
	Review(ctx context.Context, refundID, adminID, notes string) (*model.Refund, error)
	Approve(ctx context.Context, refundID, adminID, notes string) (*model.Refund, error)
	Reject(ctx context.Context, refundID, adminID, notes string) (*model.Refund, error)
	// Process marks an approved refund processed and moves the payment to
	// refunded or partially_refunded in the same transaction.
	Process(ctx context.Context, refundID, adminID string) (*model.Refund, error)
}

type RefundInput struct {
	UserID    string
	PaymentID string
	Reason    model.RefundReason
	Detail    string
	Amount    *decimal.Decimal // nil means the full payment amount
}

type refundUC struct {
	refunds  repository.RefundRepository
	payments repository.PaymentRepository
	outbox   repository.OutboxRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewRefundUseCase(
	refunds repository.RefundRepository,
	payments repository.PaymentRepository,
	outbox repository.OutboxRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *refundUC {
	l := logger.With().Str("component", "RefundUC").Logger()
	return &refundUC{refunds: refunds, payments: payments, outbox: outbox, tm: tm, log: &l, now: time.Now}
}

func (u *refundUC) Request(ctx context.Context, in RefundInput) (*model.Refund, error) {
	defer logging.TraceDuration(u.log, "RefundUC.Request")()

	reason, err := model.ParseRefundReason(string(in.Reason))
	if err != nil {
		return nil, err
	}
	var out *model.Refund
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, in.PaymentID)
		if err != nil {
			return err
		}
		// other users' payments look absent
		if p.UserID != in.UserID {
			return fmt.Errorf("%w: payment %s", domain.ErrNotFound, in.PaymentID)
		}
		if p.Status != model.PaymentStatusCompleted {
			return fmt.Errorf("%w: payment status is %s", domain.ErrNotEligible, p.Status)
		}
		if _, err := u.refunds.FindByPaymentID(ctx, tx, p.ID); err == nil {
			return domain.ErrAlreadyRequested
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		r, err := model.NewRefund(p, reason, in.Detail, in.Amount)
		if err != nil {
			return err
		}
		r.RequestedAt = u.now()
		if err := u.refunds.Create(ctx, tx, r); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return domain.ErrAlreadyRequested
			}
			return err
		}
		if err := u.enqueue(ctx, tx, model.TopicRefundRequested, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncRefund(string(out.Status))
	logging.With(logging.WithPaymentID(ctx, out.PaymentID), u.log).Info().
		Str("refund_id", out.ID).
		Str("reason", string(out.Reason)).
		Str("amount", out.Amount.StringFixed(model.MoneyScale)).
		Msg("refund requested")
	return out, nil
}

func (u *refundUC) Get(ctx context.Context, refundID string) (*model.Refund, error) {
	return u.refunds.FindByID(ctx, nil, refundID)
}

func (u *refundUC) GetByPayment(ctx context.Context, paymentID string) (*model.Refund, error) {
	return u.refunds.FindByPaymentID(ctx, nil, paymentID)
}

func (u *refundUC) Review(ctx context.Context, refundID, adminID, notes string) (*model.Refund, error) {
	return u.advance(ctx, refundID, adminID, notes, model.RefundStatusUnderReview)
}

func (u *refundUC) Approve(ctx context.Context, refundID, adminID, notes string) (*model.Refund, error) {
	return u.advance(ctx, refundID, adminID, notes, model.RefundStatusApproved)
}

func (u *refundUC) Reject(ctx context.Context, refundID, adminID, notes string) (*model.Refund, error) {
	return u.advance(ctx, refundID, adminID, notes, model.RefundStatusRejected)
}

// advance handles the admin transitions that touch only the refund row.
func (u *refundUC) advance(ctx context.Context, refundID, adminID, notes string, to model.RefundStatus) (*model.Refund, error) {
	var out *model.Refund
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		r, err := u.refunds.FindByID(ctx, tx, refundID)
		if err != nil {
			return err
		}
		if !r.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: refund %s is %s, cannot become %s", domain.ErrInvalidTransition, r.ID, r.Status, to)
		}
		upd := repository.RefundUpdate{}
		if notes != "" {
			upd.AdminNotes = &notes
		}
		if to == model.RefundStatusRejected {
			now := u.now()
			upd.ProcessedAt = &now
			upd.ProcessedBy = &adminID
			r.ProcessedAt = &now
			r.ProcessedBy = &adminID
		}
		ok, err := u.refunds.TransitionStatus(ctx, tx, r.ID, r.Status, to, upd)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: refund %s changed concurrently", domain.ErrInvalidTransition, r.ID)
		}
		r.Status = to
		if notes != "" {
			r.AdminNotes = notes
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncRefund(string(out.Status))
	u.log.Info().Str("refund_id", out.ID).Str("status", string(out.Status)).Str("admin_id", adminID).Msg("refund status changed")
	return out, nil
}

func (u *refundUC) Process(ctx context.Context, refundID, adminID string) (*model.Refund, error) {
	defer logging.TraceDuration(u.log, "RefundUC.Process")()

	var out *model.Refund
	var paymentStatus model.PaymentStatus
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		r, err := u.refunds.FindByID(ctx, tx, refundID)
		if err != nil {
			return err
		}
		if !r.Status.CanTransitionTo(model.RefundStatusProcessed) {
			return fmt.Errorf("%w: refund %s is %s, must be approved", domain.ErrInvalidTransition, r.ID, r.Status)
		}
		p, err := u.payments.FindByID(ctx, tx, r.PaymentID)
		if err != nil {
			return err
		}
		target := r.ResultingPaymentStatus(p)
		if !p.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: payment %s is %s", domain.ErrInvalidTransition, p.ID, p.Status)
		}

		now := u.now()
		ok, err := u.refunds.TransitionStatus(ctx, tx, r.ID, model.RefundStatusApproved, model.RefundStatusProcessed,
			repository.RefundUpdate{ProcessedAt: &now, ProcessedBy: &adminID})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: refund %s already processed", domain.ErrInvalidTransition, r.ID)
		}
		ok, err = u.payments.TransitionStatus(ctx, tx, p.ID, p.Status, target, repository.StatusUpdate{})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: payment %s changed concurrently", domain.ErrInvalidTransition, p.ID)
		}

		r.Status = model.RefundStatusProcessed
		r.ProcessedAt = &now
		r.ProcessedBy = &adminID
		if err := u.enqueue(ctx, tx, model.TopicRefundProcessed, r); err != nil {
			return err
		}
		out = r
		paymentStatus = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncRefund(string(out.Status))
	metrics.AddRefunded(out.Amount.InexactFloat64())
	logging.With(logging.WithPaymentID(ctx, out.PaymentID), u.log).Info().
		Str("refund_id", out.ID).
		Str("payment_status", string(paymentStatus)).
		Str("admin_id", adminID).
		Msg("refund processed")
	return out, nil
}

func (u *refundUC) enqueue(ctx context.Context, tx repository.Tx, topic string, r *model.Refund) error {
	msg, err := model.NewOutboxMessage(topic, r.PaymentID, model.RefundEvent{
		RefundID:  r.ID,
		PaymentID: r.PaymentID,
		Amount:    r.Amount.StringFixed(model.MoneyScale),
		Status:    r.Status,
		Timestamp: u.now().UTC(),
	})
	if err != nil {
		return err
	}
	return u.outbox.Add(ctx, tx, msg)
}
