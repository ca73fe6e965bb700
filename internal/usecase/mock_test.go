//go:build !integration

package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tutoring-payments/internal/config"
	"tutoring-payments/internal/domain"
	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/adapter"
	"tutoring-payments/internal/domain/ports/repository"
	"tutoring-payments/internal/infra/metrics"
	"tutoring-payments/internal/usecase"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

// logBuffer collects JSON log lines so tests can assert on what was reported.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(w *logBuffer) *zerolog.Logger {
	logger := zerolog.New(w)
	return &logger
}

// webhookResults reads gateway_notifications_total from the default registry, keyed by result.
func webhookResults() map[string]float64 {
	metrics.MustRegister()
	out := map[string]float64{}
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		panic(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "gateway_notifications_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" {
					out[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLedger() config.LedgerConfig {
	return config.LedgerConfig{Currency: "GHS", TaxRate: "0", InvoiceDueDays: 30}
}

// =============================
// In-memory database
// =============================

// memDB backs every mock repository. MockTxManager snapshots it before a
// transaction and restores the snapshot when the callback fails, so rollback
// behaves like Postgres.
type memDB struct {
	mu sync.Mutex

	payments   map[string]model.Payment
	wallets    map[string]model.Wallet // by user id
	walletTxs  []model.WalletTransaction
	refunds    map[string]model.Refund
	invoices   map[string]model.Invoice // by payment id
	invoiceSeq map[string]int64
	subs       map[string]model.Subscription // by tutor id
	profiles   map[string]model.TutorProfile
	sessions   map[string]model.TutoringSession
	events     map[string]model.GatewayEvent
	outbox     []model.OutboxMessage

	// sessionUpdates counts UpdateStatus calls per session, rollbacks included.
	sessionUpdates map[string]int

	// failOn injects an error into the named repository call, e.g. "invoices.Save".
	failOn map[string]error
}

func newMemDB() *memDB {
	return &memDB{
		payments:   map[string]model.Payment{},
		wallets:    map[string]model.Wallet{},
		refunds:    map[string]model.Refund{},
		invoices:   map[string]model.Invoice{},
		invoiceSeq: map[string]int64{},
		subs:       map[string]model.Subscription{},
		profiles:   map[string]model.TutorProfile{},
		sessions:   map[string]model.TutoringSession{},
		events:     map[string]model.GatewayEvent{},
		failOn:     map[string]error{},

		sessionUpdates: map[string]int{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memSnapshot struct {
	payments   map[string]model.Payment
	wallets    map[string]model.Wallet
	walletTxs  []model.WalletTransaction
	refunds    map[string]model.Refund
	invoices   map[string]model.Invoice
	invoiceSeq map[string]int64
	subs       map[string]model.Subscription
	profiles   map[string]model.TutorProfile
	sessions   map[string]model.TutoringSession
	events     map[string]model.GatewayEvent
	outbox     []model.OutboxMessage
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memSnapshot{
		payments:   cloneMap(db.payments),
		wallets:    cloneMap(db.wallets),
		walletTxs:  append([]model.WalletTransaction(nil), db.walletTxs...),
		refunds:    cloneMap(db.refunds),
		invoices:   cloneMap(db.invoices),
		invoiceSeq: cloneMap(db.invoiceSeq),
		subs:       cloneMap(db.subs),
		profiles:   cloneMap(db.profiles),
		sessions:   cloneMap(db.sessions),
		events:     cloneMap(db.events),
		outbox:     append([]model.OutboxMessage(nil), db.outbox...),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.payments, db.wallets, db.walletTxs = s.payments, s.wallets, s.walletTxs
	db.refunds, db.invoices, db.invoiceSeq = s.refunds, s.invoices, s.invoiceSeq
	db.subs, db.profiles, db.sessions = s.subs, s.profiles, s.sessions
	db.events, db.outbox = s.events, s.outbox
}

// fail must be called with db.mu held.
func (db *memDB) fail(op string) error {
	return db.failOn[op]
}

func (db *memDB) outboxTopics() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, 0, len(db.outbox))
	for _, m := range db.outbox {
		out = append(out, m.Topic)
	}
	return out
}

func (db *memDB) countTopic(topic string) int {
	n := 0
	for _, t := range db.outboxTopics() {
		if t == topic {
			n++
		}
	}
	return n
}

func (db *memDB) payment(id string) model.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.payments[id]
}

func (db *memDB) walletBalance(userID string) decimal.Decimal {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.wallets[userID].Balance
}

func (db *memDB) ledgerRows() []model.WalletTransaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.WalletTransaction(nil), db.walletTxs...)
}

func (db *memDB) sessionUpdateCount(id string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.sessionUpdates[id]
}

func (db *memDB) invoiceCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.invoices)
}

// =============================
// Transaction manager
// =============================

type memTx struct{}

type MockTxManager struct {
	db *memDB
	mu sync.Mutex // one transaction at a time, like a row lock on everything

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Commits    int
	Rollbacks  int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(db *memDB) *MockTxManager {
	return &MockTxManager{db: db}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.db.snapshot()
	if err := fn(ctx, memTx{}); err != nil {
		m.db.restore(snap)
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

// =============================
// Repositories
// =============================

// ---- Payments ----

type MockPaymentRepo struct{ db *memDB }

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("payments.Save"); err != nil {
		return err
	}
	r.db.payments[p.ID] = *p
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *MockPaymentRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.payments {
		if intentID != "" && p.GatewayIntentID == intentID {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.db.payments {
		if p.UserID == userID {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockPaymentRepo) SetGatewayIntent(ctx context.Context, tx repository.Tx, id, intentID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return domain.ErrInvalidTransition
	}
	p.GatewayIntentID = intentID
	p.Status = model.PaymentStatusProcessing
	p.UpdatedAt = time.Now()
	r.db.payments[id] = p
	return nil
}

func (r *MockPaymentRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentStatus, upd repository.StatusUpdate) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("payments.TransitionStatus"); err != nil {
		return false, err
	}
	p, ok := r.db.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	if upd.CompletedAt != nil && p.CompletedAt == nil {
		at := *upd.CompletedAt
		p.CompletedAt = &at
	}
	if upd.GatewayReference != nil {
		p.GatewayReference = *upd.GatewayReference
	}
	if upd.GatewayResponse != nil {
		p.GatewayResponse = upd.GatewayResponse
	}
	p.UpdatedAt = time.Now()
	r.db.payments[id] = p
	return true, nil
}

func (r *MockPaymentRepo) ListStaleProcessing(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.db.payments {
		if p.Status == model.PaymentStatusProcessing && p.UpdatedAt.Before(olderThan) {
			cp := p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) ExistsCompleted(ctx context.Context, tx repository.Tx, userID string, kind model.AccessKind, targetID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.payments {
		if p.UserID != userID || p.Status != model.PaymentStatusCompleted {
			continue
		}
		switch kind {
		case model.AccessResource:
			if p.ResourceID != nil && *p.ResourceID == targetID {
				return true, nil
			}
		case model.AccessVideo:
			if p.VideoID != nil && *p.VideoID == targetID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *MockPaymentRepo) ExistsCompletedForSession(ctx context.Context, tx repository.Tx, sessionID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.payments {
		if p.SessionID != nil && *p.SessionID == sessionID && p.Status == model.PaymentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

// ---- Wallets ----

type MockWalletRepo struct{ db *memDB }

var _ repository.WalletRepository = (*MockWalletRepo)(nil)

func (r *MockWalletRepo) GetOrCreate(ctx context.Context, tx repository.Tx, userID string) (*model.Wallet, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if w, ok := r.db.wallets[userID]; ok {
		return &w, nil
	}
	w, err := model.NewWallet(userID)
	if err != nil {
		return nil, err
	}
	r.db.wallets[userID] = *w
	return w, nil
}

func (r *MockWalletRepo) byID(walletID string) (model.Wallet, bool) {
	for _, w := range r.db.wallets {
		if w.ID == walletID {
			return w, true
		}
	}
	return model.Wallet{}, false
}

func (r *MockWalletRepo) Credit(ctx context.Context, tx repository.Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	w, ok := r.byID(walletID)
	if !ok {
		return decimal.Zero, domain.ErrNotFound
	}
	w.Balance = w.Balance.Add(amount)
	r.db.wallets[w.UserID] = w
	return w.Balance, nil
}

func (r *MockWalletRepo) Debit(ctx context.Context, tx repository.Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	w, ok := r.byID(walletID)
	if !ok {
		return decimal.Zero, domain.ErrNotFound
	}
	if w.Balance.LessThan(amount) {
		return decimal.Zero, domain.ErrInsufficientBalance
	}
	w.Balance = w.Balance.Sub(amount)
	r.db.wallets[w.UserID] = w
	return w.Balance, nil
}

func (r *MockWalletRepo) AppendTransaction(ctx context.Context, tx repository.Tx, t *model.WalletTransaction) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.walletTxs = append(r.db.walletTxs, *t)
	return nil
}

func (r *MockWalletRepo) ListTransactions(ctx context.Context, tx repository.Tx, walletID string, limit int) ([]*model.WalletTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.WalletTransaction
	for i := len(r.db.walletTxs) - 1; i >= 0 && len(out) < limit; i-- {
		if t := r.db.walletTxs[i]; t.WalletID == walletID {
			out = append(out, &t)
		}
	}
	return out, nil
}

// ---- Refunds ----

type MockRefundRepo struct{ db *memDB }

var _ repository.RefundRepository = (*MockRefundRepo)(nil)

func (r *MockRefundRepo) Create(ctx context.Context, tx repository.Tx, rf *model.Refund) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.refunds {
		if existing.PaymentID == rf.PaymentID {
			return domain.ErrAlreadyExists
		}
	}
	r.db.refunds[rf.ID] = *rf
	return nil
}

func (r *MockRefundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Refund, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rf, ok := r.db.refunds[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rf, nil
}

func (r *MockRefundRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Refund, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, rf := range r.db.refunds {
		if rf.PaymentID == paymentID {
			cp := rf
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockRefundRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from, to model.RefundStatus, upd repository.RefundUpdate) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rf, ok := r.db.refunds[id]
	if !ok || rf.Status != from {
		return false, nil
	}
	rf.Status = to
	if upd.AdminNotes != nil {
		rf.AdminNotes = *upd.AdminNotes
	}
	if upd.ProcessedAt != nil {
		rf.ProcessedAt = upd.ProcessedAt
	}
	if upd.ProcessedBy != nil {
		rf.ProcessedBy = upd.ProcessedBy
	}
	r.db.refunds[id] = rf
	return true, nil
}

// ---- Invoices ----

type MockInvoiceRepo struct{ db *memDB }

var _ repository.InvoiceRepository = (*MockInvoiceRepo)(nil)

func (r *MockInvoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("invoices.Save"); err != nil {
		return err
	}
	if _, dup := r.db.invoices[inv.PaymentID]; dup {
		return domain.ErrAlreadyExists
	}
	r.db.invoices[inv.PaymentID] = *inv
	return nil
}

func (r *MockInvoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	inv, ok := r.db.invoices[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &inv, nil
}

func (r *MockInvoiceRepo) NextSequence(ctx context.Context, tx repository.Tx, day string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.invoiceSeq[day]++
	return r.db.invoiceSeq[day], nil
}

// ---- Inbox / outbox ----

type MockGatewayEventRepo struct{ db *memDB }

var _ repository.GatewayEventRepository = (*MockGatewayEventRepo)(nil)

func (r *MockGatewayEventRepo) Record(ctx context.Context, tx repository.Tx, ev *model.GatewayEvent) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, seen := r.db.events[ev.EventID]; seen {
		return false, nil
	}
	r.db.events[ev.EventID] = *ev
	return true, nil
}

type MockOutboxRepo struct{ db *memDB }

var _ repository.OutboxRepository = (*MockOutboxRepo)(nil)

func (r *MockOutboxRepo) Add(ctx context.Context, tx repository.Tx, m *model.OutboxMessage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.outbox = append(r.db.outbox, *m)
	return nil
}

func (r *MockOutboxRepo) FetchPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.OutboxMessage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.OutboxMessage
	for i := range r.db.outbox {
		if r.db.outbox[i].Status == model.OutboxStatusPending && len(out) < limit {
			m := r.db.outbox[i]
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r *MockOutboxRepo) MarkSent(ctx context.Context, tx repository.Tx, id string, sentAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.outbox {
		if r.db.outbox[i].ID == id {
			r.db.outbox[i].Status = model.OutboxStatusSent
			r.db.outbox[i].SentAt = &sentAt
		}
	}
	return nil
}

// ---- Subscriptions / profiles / sessions ----

type MockSubscriptionRepo struct{ db *memDB }

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.subs[s.TutorID] = *s
	return nil
}

func (r *MockSubscriptionRepo) FindByTutor(ctx context.Context, tx repository.Tx, tutorID string) (*model.Subscription, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.subs[tutorID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r *MockSubscriptionRepo) ListDueForExpiry(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.db.subs {
		if s.Status == model.SubscriptionStatusActive && !s.EndDate.After(now) {
			cp := s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockSubscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for k, s := range r.db.subs {
		if s.ID == id {
			s.Status = status
			r.db.subs[k] = s
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	for _, s := range r.db.subs {
		out[s.Status]++
	}
	return out, nil
}

type MockProfileRepo struct{ db *memDB }

var _ repository.ProfileRepository = (*MockProfileRepo)(nil)

func (r *MockProfileRepo) SetSubscriptionFlags(ctx context.Context, tx repository.Tx, tutorID string, active bool, expiry *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.profiles[tutorID] = model.TutorProfile{TutorID: tutorID, SubscriptionActive: active, SubscriptionExpiry: expiry}
	return nil
}

func (r *MockProfileRepo) FindByTutor(ctx context.Context, tx repository.Tx, tutorID string) (*model.TutorProfile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[tutorID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type MockSessionRepo struct{ db *memDB }

var _ repository.SessionRepository = (*MockSessionRepo)(nil)

func (r *MockSessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.TutoringSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r *MockSessionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SessionStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.db.sessionUpdates[id]++
	s.Status = status
	r.db.sessions[id] = s
	return nil
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu      sync.Mutex
	Created []createdIntent

	CreateFunc   func(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (adapter.ChargeIntent, error)
	RetrieveFunc func(ctx context.Context, intentID string) (adapter.IntentStatus, error)
}

type createdIntent struct {
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
	Intent      adapter.ChargeIntent
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) CreateChargeIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (adapter.ChargeIntent, error) {
	if g.CreateFunc != nil {
		return g.CreateFunc(ctx, amountMinor, currency, metadata)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.Created) + 1
	intent := adapter.ChargeIntent{ID: fmt.Sprintf("pi_%d", n), ClientSecret: fmt.Sprintf("pi_%d_secret", n)}
	g.Created = append(g.Created, createdIntent{AmountMinor: amountMinor, Currency: currency, Metadata: metadata, Intent: intent})
	return intent, nil
}

func (g *MockPaymentGateway) RetrieveIntent(ctx context.Context, intentID string) (adapter.IntentStatus, error) {
	if g.RetrieveFunc != nil {
		return g.RetrieveFunc(ctx, intentID)
	}
	return adapter.IntentStatusPending, nil
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
	Locks int
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if _, busy := l.held[key]; busy {
		return "", adapter.ErrLockNotAcquired
	}
	token := fmt.Sprintf("tok-%d", l.Locks+1)
	l.held[key] = token
	l.Locks++
	return token, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return errors.New("lock token mismatch")
	}
	delete(l.held, key)
	return nil
}

func (l *MockLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// =============================
// Harness: the full use case graph over one memDB
// =============================

type harness struct {
	db       *memDB
	tm       *MockTxManager
	gateway  *MockPaymentGateway
	locker   *MockLocker
	payments *MockPaymentRepo
	logs     *logBuffer

	Wallet       usecase.WalletUseCase
	Subscription usecase.SubscriptionUseCase
	Payment      usecase.PaymentUseCase
	Refund       usecase.RefundUseCase
}

func newHarness(ledger config.LedgerConfig) *harness {
	db := newMemDB()
	tm := NewMockTxManager(db)
	logs := &logBuffer{}
	logger := newTestLogger(logs)
	h := &harness{
		db:       db,
		tm:       tm,
		gateway:  &MockPaymentGateway{},
		locker:   NewMockLocker(),
		payments: &MockPaymentRepo{db: db},
		logs:     logs,
	}
	h.Wallet = usecase.NewWalletUseCase(&MockWalletRepo{db: db}, tm, logger)
	h.Subscription = usecase.NewSubscriptionUseCase(&MockSubscriptionRepo{db: db}, &MockProfileRepo{db: db}, &MockOutboxRepo{db: db}, tm, logger)
	h.Payment = usecase.NewPaymentUseCase(usecase.PaymentDeps{
		Payments:      h.payments,
		Invoices:      &MockInvoiceRepo{db: db},
		Inbox:         &MockGatewayEventRepo{db: db},
		Outbox:        &MockOutboxRepo{db: db},
		Sessions:      &MockSessionRepo{db: db},
		Wallets:       h.Wallet,
		Subscriptions: h.Subscription,
		Gateway:       h.gateway,
		Locker:        h.locker,
		TM:            tm,
	}, ledger, time.Second, logger)
	h.Refund = usecase.NewRefundUseCase(&MockRefundRepo{db: db}, h.payments, &MockOutboxRepo{db: db}, tm, logger)
	return h
}

func (h *harness) addSession(s model.TutoringSession) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	h.db.sessions[s.ID] = s
}

func (h *harness) putPayment(p model.Payment) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	h.db.payments[p.ID] = p
}

// seedPayment stores a payment in the given status, bypassing checkout.
func (h *harness) seedPayment(userID string, typ model.PaymentType, amount string, status model.PaymentStatus) model.Payment {
	now := time.Now()
	p := model.Payment{
		ID:        domain.NewUUID(),
		UserID:    userID,
		Type:      typ,
		Amount:    dec(amount),
		Currency:  "GHS",
		Method:    model.PaymentMethodStripe,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == model.PaymentStatusCompleted {
		p.CompletedAt = &now
	}
	h.putPayment(p)
	return p
}

// fund tops the user's wallet up directly through the wallet use case.
func (h *harness) fund(userID, amount string) {
	if _, err := h.Wallet.Credit(context.Background(), userID, dec(amount), "seed", "seed"); err != nil {
		panic(err)
	}
}
