package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tutoring-payments/internal/config"
	"tutoring-payments/internal/domain"
	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/adapter"
	"tutoring-payments/internal/domain/ports/repository"
	"tutoring-payments/internal/infra/logging"
	"tutoring-payments/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// Create validates and persists a pending payment without funding it.
	Create(ctx context.Context, in CreatePaymentInput) (*model.Payment, error)
	// Checkout creates the payment and funds it: wallet payments complete
	// synchronously, gateway payments move to processing and return a client secret.
	Checkout(ctx context.Context, in CreatePaymentInput) (*CheckoutResult, error)

	PayForSession(ctx context.Context, userID, sessionID string, method model.PaymentMethod) (*CheckoutResult, error)
	Subscribe(ctx context.Context, tutorID string, plan model.PlanTier, method model.PaymentMethod) (*CheckoutResult, error)
	TopUp(ctx context.Context, userID string, amount decimal.Decimal, method model.PaymentMethod) (*CheckoutResult, error)

	// Complete is idempotent: completing an already completed payment returns
	// it unchanged and runs no side effect.
	Complete(ctx context.Context, paymentID string, gatewayResponse map[string]any) (*model.Payment, error)
	Fail(ctx context.Context, paymentID, detail string) (*model.Payment, error)
	Cancel(ctx context.Context, paymentID string) (*model.Payment, error)

	// HandleNotification applies a verified gateway callback. Redeliveries are
	// swallowed and return nil.
	HandleNotification(ctx context.Context, n adapter.Notification) error
	// ReconcileStale asks the gateway about processing payments older than
	// olderThan and settles the ones that reached a final state.
	ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (int, error)

	Get(ctx context.Context, paymentID string) (*model.Payment, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Payment, error)
	Invoice(ctx context.Context, paymentID string) (*model.Invoice, error)
	HasAccess(ctx context.Context, userID string, kind model.AccessKind, targetID string) (bool, error)
}

type CreatePaymentInput struct {
	UserID      string
	Type        model.PaymentType
	Amount      decimal.Decimal
	Currency    string // empty means the configured ledger currency
	Method      model.PaymentMethod
	Description string
	SessionID   *string
	ResourceID  *string
	VideoID     *string
	Metadata    map[string]any
}

type CheckoutResult struct {
	Payment *model.Payment
	// ClientSecret is empty for wallet payments.
	ClientSecret string
}

// PaymentDeps groups the collaborators of the payment use case.
type PaymentDeps struct {
	Payments      repository.PaymentRepository
	Invoices      repository.InvoiceRepository
	Inbox         repository.GatewayEventRepository
	Outbox        repository.OutboxRepository
	Sessions      repository.SessionRepository
	Wallets       WalletUseCase
	Subscriptions SubscriptionUseCase
	Gateway       adapter.PaymentGateway
	Locker        adapter.Locker // optional; nil skips notification locking
	TM            repository.TransactionManager
}

type paymentUC struct {
	PaymentDeps
	ledger  config.LedgerConfig
	lockTTL time.Duration
	log     *zerolog.Logger
	now     func() time.Time
}

func NewPaymentUseCase(deps PaymentDeps, ledger config.LedgerConfig, lockTTL time.Duration, logger *zerolog.Logger) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &paymentUC{
		PaymentDeps: deps,
		ledger:      ledger,
		lockTTL:     lockTTL,
		log:         &l,
		now:         time.Now,
	}
}

// -----------------------------
// Create / checkout
// -----------------------------

func (u *paymentUC) Create(ctx context.Context, in CreatePaymentInput) (*model.Payment, error) {
	typ, err := model.ParsePaymentType(string(in.Type))
	if err != nil {
		return nil, err
	}
	method, err := model.ParsePaymentMethod(string(in.Method))
	if err != nil {
		return nil, err
	}
	currency := in.Currency
	if currency == "" {
		currency = u.ledger.Currency
	}
	p, err := model.NewPayment(in.UserID, typ, in.Amount, currency, method, in.Description)
	if err != nil {
		return nil, err
	}
	p.SessionID = in.SessionID
	p.ResourceID = in.ResourceID
	p.VideoID = in.VideoID
	p.Metadata = in.Metadata
	if err := u.checkPurchase(ctx, p); err != nil {
		return nil, err
	}

	if err := u.Payments.Save(ctx, nil, p); err != nil {
		return nil, err
	}
	metrics.IncPaymentStatus(string(p.Type), string(p.Status))
	logging.With(logging.WithPaymentID(ctx, p.ID), u.log).Info().
		Str("type", string(p.Type)).
		Str("method", string(p.Method)).
		Str("amount", p.Amount.StringFixed(model.MoneyScale)).
		Msg("payment created")
	return p, nil
}

func (u *paymentUC) Checkout(ctx context.Context, in CreatePaymentInput) (*CheckoutResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Checkout")()

	p, err := u.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithPaymentID(ctx, p.ID)
	switch p.Method.Funding() {
	case model.FundingWallet:
		return u.payWithWallet(ctx, p)
	case model.FundingGateway:
		return u.payWithGateway(ctx, p)
	}
	panic("unreachable")
}

// payWithWallet debits and completes in one transaction. Any failure rolls
// the debit back and the payment is recorded as failed.
func (u *paymentUC) payWithWallet(ctx context.Context, p *model.Payment) (*CheckoutResult, error) {
	var done *model.Payment
	var changed bool
	err := u.TM.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.Wallets.DebitTx(ctx, tx, p.UserID, p.Amount, walletDebitDescription(p), p.ID); err != nil {
			return err
		}
		var err error
		done, changed, err = u.completeTx(ctx, tx, p.ID, map[string]any{"funding": "wallet"}, "")
		return err
	})
	if err != nil {
		if _, ferr := u.Fail(ctx, p.ID, err.Error()); ferr != nil {
			logging.With(ctx, u.log).Error().Err(ferr).Msg("record wallet payment failure")
		}
		return nil, err
	}
	if changed {
		u.recordCompleted(ctx, done)
	}
	return &CheckoutResult{Payment: done}, nil
}

func walletDebitDescription(p *model.Payment) string {
	if p.Description != "" {
		return p.Description
	}
	return fmt.Sprintf("Payment for %s", p.Type)
}

func (u *paymentUC) payWithGateway(ctx context.Context, p *model.Payment) (*CheckoutResult, error) {
	meta := map[string]string{"payment_id": p.ID, "user_id": p.UserID}
	start := time.Now()
	intent, err := u.Gateway.CreateChargeIntent(ctx, p.MinorUnits(), p.Currency, meta)
	metrics.ObserveGatewayLatency(u.Gateway.Name(), "create_intent", time.Since(start))
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("gateway", u.Gateway.Name()).Msg("create charge intent failed")
		if _, ferr := u.Fail(ctx, p.ID, "gateway: "+err.Error()); ferr != nil {
			logging.With(ctx, u.log).Error().Err(ferr).Msg("record gateway failure")
		}
		return nil, domain.ErrGatewayFailure
	}
	if err := u.Payments.SetGatewayIntent(ctx, nil, p.ID, intent.ID); err != nil {
		return nil, err
	}
	p.GatewayIntentID = intent.ID
	p.Status = model.PaymentStatusProcessing
	p.UpdatedAt = u.now()
	metrics.IncPaymentStatus(string(p.Type), string(p.Status))
	return &CheckoutResult{Payment: p, ClientSecret: intent.ClientSecret}, nil
}

func (u *paymentUC) PayForSession(ctx context.Context, userID, sessionID string, method model.PaymentMethod) (*CheckoutResult, error) {
	s, err := u.Sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	sid := s.ID
	return u.Checkout(ctx, CreatePaymentInput{
		UserID:      userID,
		Type:        model.PaymentTypeSession,
		Amount:      s.TotalAmount,
		Method:      method,
		Description: "Payment for session: " + s.Title,
		SessionID:   &sid,
	})
}

func (u *paymentUC) Subscribe(ctx context.Context, tutorID string, plan model.PlanTier, method model.PaymentMethod) (*CheckoutResult, error) {
	offer, err := plan.Offer()
	if err != nil {
		return nil, err
	}
	return u.Checkout(ctx, CreatePaymentInput{
		UserID:      tutorID,
		Type:        model.PaymentTypeSubscription,
		Amount:      offer.Price,
		Method:      method,
		Description: fmt.Sprintf("%s subscription, %d month(s)", offer.Tier, offer.Months),
		Metadata:    map[string]any{"plan": string(offer.Tier), "months": offer.Months},
	})
}

// checkPurchase prices and authorizes a payment from server-side records so a
// caller cannot choose what a session or a plan costs.
func (u *paymentUC) checkPurchase(ctx context.Context, p *model.Payment) error {
	if err := p.CheckLinks(); err != nil {
		return err
	}
	switch p.Type {
	case model.PaymentTypeSession:
		s, err := u.Sessions.FindByID(ctx, nil, *p.SessionID)
		if err != nil {
			return err
		}
		if s.StudentID != p.UserID {
			return fmt.Errorf("%w: session %s belongs to another student", domain.ErrForbidden, s.ID)
		}
		if s.Status == model.SessionStatusCancelled {
			return fmt.Errorf("%w: session %s is cancelled", domain.ErrInvalidArgument, s.ID)
		}
		if !p.Amount.Equal(s.TotalAmount) {
			return fmt.Errorf("%w: amount %s does not match session total %s", domain.ErrInvalidAmount,
				p.Amount.StringFixed(model.MoneyScale), s.TotalAmount.StringFixed(model.MoneyScale))
		}
		paid, err := u.Payments.ExistsCompletedForSession(ctx, nil, s.ID)
		if err != nil {
			return err
		}
		if paid {
			return fmt.Errorf("%w: session %s is already paid", domain.ErrAlreadyExists, s.ID)
		}
	case model.PaymentTypeSubscription:
		plan, err := model.ParsePlanTier(p.MetaString("plan"))
		if err != nil {
			return err
		}
		offer, err := plan.Offer()
		if err != nil {
			return err
		}
		if _, present := p.Metadata["months"]; present {
			if months, ok := p.MetaInt("months"); !ok || months != offer.Months {
				return fmt.Errorf("%w: %s plan runs %d month(s)", domain.ErrInvalidArgument, offer.Tier, offer.Months)
			}
		}
		if !p.Amount.Equal(offer.Price) {
			return fmt.Errorf("%w: %s plan costs %s", domain.ErrInvalidAmount, offer.Tier, offer.Price.StringFixed(model.MoneyScale))
		}
		p.Metadata = map[string]any{"plan": string(offer.Tier), "months": offer.Months}
	}
	return nil
}

func (u *paymentUC) TopUp(ctx context.Context, userID string, amount decimal.Decimal, method model.PaymentMethod) (*CheckoutResult, error) {
	return u.Checkout(ctx, CreatePaymentInput{
		UserID:      userID,
		Type:        model.PaymentTypeWalletTopUp,
		Amount:      amount,
		Method:      method,
		Description: "Wallet top-up",
	})
}

// -----------------------------
// Settlement
// -----------------------------

func (u *paymentUC) Complete(ctx context.Context, paymentID string, gatewayResponse map[string]any) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Complete")()

	var out *model.Payment
	var changed bool
	err := u.TM.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, changed, err = u.completeTx(ctx, tx, paymentID, gatewayResponse, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		u.recordCompleted(logging.WithPaymentID(ctx, paymentID), out)
	}
	return out, nil
}

// completeTx locks the payment row, moves it to completed and fans out to the
// type-specific side effect, the invoice and the outbox. changed is false when
// the payment was already completed.
func (u *paymentUC) completeTx(ctx context.Context, tx repository.Tx, paymentID string, resp map[string]any, reference string) (*model.Payment, bool, error) {
	p, err := u.Payments.FindByID(ctx, tx, paymentID)
	if err != nil {
		return nil, false, err
	}
	switch p.Status {
	case model.PaymentStatusCompleted, model.PaymentStatusRefunded, model.PaymentStatusPartiallyRefunded:
		return p, false, nil
	}
	if !p.Status.CanTransitionTo(model.PaymentStatusCompleted) {
		return nil, false, fmt.Errorf("%w: payment %s is %s", domain.ErrInvalidTransition, p.ID, p.Status)
	}

	now := u.now()
	upd := repository.StatusUpdate{CompletedAt: &now, GatewayResponse: resp}
	if reference != "" {
		upd.GatewayReference = &reference
	}
	ok, err := u.Payments.TransitionStatus(ctx, tx, p.ID, p.Status, model.PaymentStatusCompleted, upd)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// lost a race the row lock should have prevented; re-read and report
		cur, err := u.Payments.FindByID(ctx, tx, p.ID)
		if err != nil {
			return nil, false, err
		}
		if cur.Status == model.PaymentStatusCompleted {
			return cur, false, nil
		}
		return nil, false, fmt.Errorf("%w: payment %s is %s", domain.ErrInvalidTransition, p.ID, cur.Status)
	}
	p.Status = model.PaymentStatusCompleted
	p.CompletedAt = &now
	p.UpdatedAt = now
	if resp != nil {
		p.GatewayResponse = resp
	}
	if reference != "" {
		p.GatewayReference = reference
	}

	if err := u.applySideEffect(ctx, tx, p); err != nil {
		return nil, false, err
	}
	if err := u.issueInvoice(ctx, tx, p, now); err != nil {
		return nil, false, err
	}
	msg, err := model.NewOutboxMessage(model.TopicPaymentCompleted, p.ID, model.NewPaymentEvent(p, ""))
	if err != nil {
		return nil, false, err
	}
	if err := u.Outbox.Add(ctx, tx, msg); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// applySideEffect runs exactly one effect per payment type.
func (u *paymentUC) applySideEffect(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	switch p.Type {
	case model.PaymentTypeSession:
		if p.SessionID == nil {
			return fmt.Errorf("%w: session payment %s has no session", domain.ErrInvalidArgument, p.ID)
		}
		return u.Sessions.UpdateStatus(ctx, tx, *p.SessionID, model.SessionStatusConfirmed)
	case model.PaymentTypeSubscription:
		_, err := u.Subscriptions.ActivateTx(ctx, tx, p.UserID, p)
		return err
	case model.PaymentTypeWalletTopUp:
		_, err := u.Wallets.CreditTx(ctx, tx, p.UserID, p.Amount, "Wallet top-up", p.ID)
		return err
	case model.PaymentTypeResource, model.PaymentTypeVideo, model.PaymentTypePackage:
		return nil
	default:
		return fmt.Errorf("%w: %s", domain.ErrInvalidPaymentType, p.Type)
	}
}

func (u *paymentUC) issueInvoice(ctx context.Context, tx repository.Tx, p *model.Payment, now time.Time) error {
	day := model.InvoiceDay(now)
	seq, err := u.Invoices.NextSequence(ctx, tx, day)
	if err != nil {
		return err
	}
	dueIn := time.Duration(u.ledger.InvoiceDueDays) * 24 * time.Hour
	inv, err := model.NewPaidInvoice(p, model.FormatInvoiceNumber(day, seq), u.ledger.Tax(), dueIn, now)
	if err != nil {
		return err
	}
	return u.Invoices.Save(ctx, tx, inv)
}

func (u *paymentUC) recordCompleted(ctx context.Context, p *model.Payment) {
	metrics.IncPaymentStatus(string(p.Type), string(p.Status))
	metrics.AddRevenue(p.Currency, string(p.Type), p.Amount.InexactFloat64())
	logging.With(ctx, u.log).Info().
		Str("type", string(p.Type)).
		Str("amount", p.Amount.StringFixed(model.MoneyScale)).
		Msg("payment completed")
}

func (u *paymentUC) Fail(ctx context.Context, paymentID, detail string) (*model.Payment, error) {
	var out *model.Payment
	var changed bool
	err := u.TM.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, changed, err = u.failTx(ctx, tx, paymentID, detail)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.IncPaymentStatus(string(out.Type), string(out.Status))
		logging.With(logging.WithPaymentID(ctx, paymentID), u.log).Warn().Str("detail", detail).Msg("payment failed")
	}
	return out, nil
}

func (u *paymentUC) failTx(ctx context.Context, tx repository.Tx, paymentID, detail string) (*model.Payment, bool, error) {
	p, err := u.Payments.FindByID(ctx, tx, paymentID)
	if err != nil {
		return nil, false, err
	}
	if p.Status == model.PaymentStatusFailed {
		return p, false, nil
	}
	if !p.Status.CanTransitionTo(model.PaymentStatusFailed) {
		return nil, false, fmt.Errorf("%w: payment %s is %s", domain.ErrInvalidTransition, p.ID, p.Status)
	}
	resp := map[string]any{"error": detail}
	ok, err := u.Payments.TransitionStatus(ctx, tx, p.ID, p.Status, model.PaymentStatusFailed, repository.StatusUpdate{GatewayResponse: resp})
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("%w: payment %s changed concurrently", domain.ErrInvalidTransition, p.ID)
	}
	p.Status = model.PaymentStatusFailed
	p.GatewayResponse = resp
	p.UpdatedAt = u.now()

	msg, err := model.NewOutboxMessage(model.TopicPaymentFailed, p.ID, model.NewPaymentEvent(p, detail))
	if err != nil {
		return nil, false, err
	}
	if err := u.Outbox.Add(ctx, tx, msg); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (u *paymentUC) Cancel(ctx context.Context, paymentID string) (*model.Payment, error) {
	var out *model.Payment
	err := u.TM.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.Payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if !p.Status.CanTransitionTo(model.PaymentStatusCancelled) {
			return fmt.Errorf("%w: payment %s is %s", domain.ErrInvalidTransition, p.ID, p.Status)
		}
		ok, err := u.Payments.TransitionStatus(ctx, tx, p.ID, p.Status, model.PaymentStatusCancelled, repository.StatusUpdate{})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: payment %s changed concurrently", domain.ErrInvalidTransition, p.ID)
		}
		p.Status = model.PaymentStatusCancelled
		p.UpdatedAt = u.now()
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPaymentStatus(string(out.Type), string(out.Status))
	return out, nil
}

// -----------------------------
// Gateway notifications
// -----------------------------

func (u *paymentUC) HandleNotification(ctx context.Context, n adapter.Notification) error {
	defer logging.TraceDuration(u.log, "PaymentUC.HandleNotification")()

	if n.EventID == "" {
		return fmt.Errorf("%w: notification without event id", domain.ErrInvalidArgument)
	}
	switch n.Type {
	case adapter.EventIntentSucceeded, adapter.EventIntentFailed:
	default:
		metrics.IncWebhook("ignored")
		u.log.Debug().Str("event_type", n.Type).Msg("ignoring gateway event")
		return nil
	}

	p, err := u.resolveNotification(ctx, n)
	if err != nil {
		metrics.IncWebhook("unmatched")
		return err
	}
	ctx = logging.WithPaymentID(ctx, p.ID)

	if u.Locker != nil {
		key := "payment:" + p.ID
		token, err := u.Locker.TryLock(ctx, key, u.lockTTL)
		if err != nil {
			metrics.IncWebhook("busy")
			return err
		}
		defer func() {
			if err := u.Locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				u.log.Warn().Err(err).Str("key", key).Msg("unlock failed")
			}
		}()
	}

	var out *model.Payment
	var changed bool
	var closedAs model.PaymentStatus // set when a success arrives for a failed or cancelled payment
	err = u.TM.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		fresh, err := u.Payments.FindByID(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		recorded, err := u.Inbox.Record(ctx, tx, &model.GatewayEvent{
			EventID:    n.EventID,
			IntentID:   n.IntentID,
			Type:       n.Type,
			ReceivedAt: u.now(),
		})
		if err != nil {
			return err
		}
		if !recorded || fresh.Status.IsTerminal() {
			if recorded && n.Type == adapter.EventIntentSucceeded &&
				(fresh.Status == model.PaymentStatusFailed || fresh.Status == model.PaymentStatusCancelled) {
				closedAs = fresh.Status
			}
			return domain.ErrDuplicateNotification
		}
		if n.Type == adapter.EventIntentSucceeded {
			out, changed, err = u.completeTx(ctx, tx, p.ID, n.Raw, n.Reference)
			return err
		}
		detail := n.FailureMessage
		if detail == "" {
			detail = "payment failed at gateway"
		}
		out, changed, err = u.failTx(ctx, tx, p.ID, detail)
		return err
	})
	if errors.Is(err, domain.ErrDuplicateNotification) && closedAs != "" {
		// The gateway captured money the ledger already closed; needs manual review.
		metrics.IncWebhook("success_after_close")
		logging.With(ctx, u.log).Error().
			Str("event_id", n.EventID).
			Str("intent_id", n.IntentID).
			Str("status", string(closedAs)).
			Str("amount", p.Amount.StringFixed(model.MoneyScale)).
			Msg("gateway reports success for a closed payment")
		return nil
	}
	if errors.Is(err, domain.ErrDuplicateNotification) {
		metrics.IncWebhook("duplicate")
		logging.With(ctx, u.log).Info().Str("event_id", n.EventID).Str("event_type", n.Type).Msg("duplicate gateway notification ignored")
		return nil
	}
	if err != nil {
		metrics.IncWebhook("error")
		return err
	}
	metrics.IncWebhook("applied")
	if changed {
		if out.Status == model.PaymentStatusCompleted {
			u.recordCompleted(ctx, out)
		} else {
			metrics.IncPaymentStatus(string(out.Type), string(out.Status))
		}
	}
	return nil
}

// resolveNotification prefers the payment_id echoed in metadata and falls
// back to the intent id.
func (u *paymentUC) resolveNotification(ctx context.Context, n adapter.Notification) (*model.Payment, error) {
	if id := n.Metadata["payment_id"]; id != "" {
		p, err := u.Payments.FindByID(ctx, nil, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if n.IntentID == "" {
		return nil, fmt.Errorf("%w: notification %s matches no payment", domain.ErrNotFound, n.EventID)
	}
	return u.Payments.FindByIntentID(ctx, nil, n.IntentID)
}

func (u *paymentUC) ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := u.Payments.ListStaleProcessing(ctx, nil, olderThan, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	settled := 0
	for _, p := range stale {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if p.GatewayIntentID == "" {
			continue
		}
		start := time.Now()
		st, err := u.Gateway.RetrieveIntent(ctx, p.GatewayIntentID)
		metrics.ObserveGatewayLatency(u.Gateway.Name(), "retrieve_intent", time.Since(start))
		if err != nil {
			u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("retrieve intent failed")
			continue
		}
		switch st {
		case adapter.IntentStatusSucceeded:
			_, err = u.Complete(ctx, p.ID, map[string]any{"reconciled": true})
		case adapter.IntentStatusFailed:
			_, err = u.Fail(ctx, p.ID, "gateway reported failure during reconciliation")
		case adapter.IntentStatusCancelled:
			_, err = u.Cancel(ctx, p.ID)
		default:
			continue
		}
		if err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("reconcile payment failed")
			continue
		}
		settled++
	}
	return settled, nil
}

// -----------------------------
// Reads
// -----------------------------

func (u *paymentUC) Get(ctx context.Context, paymentID string) (*model.Payment, error) {
	return u.Payments.FindByID(ctx, nil, paymentID)
}

func (u *paymentUC) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.Payments.ListByUser(ctx, nil, userID, limit)
}

func (u *paymentUC) Invoice(ctx context.Context, paymentID string) (*model.Invoice, error) {
	return u.Invoices.FindByPaymentID(ctx, nil, paymentID)
}

func (u *paymentUC) HasAccess(ctx context.Context, userID string, kind model.AccessKind, targetID string) (bool, error) {
	switch kind {
	case model.AccessResource, model.AccessVideo:
	default:
		return false, fmt.Errorf("%w: unknown access kind %q", domain.ErrInvalidArgument, kind)
	}
	return u.Payments.ExistsCompleted(ctx, nil, userID, kind, targetID)
}
