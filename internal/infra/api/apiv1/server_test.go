//go:build !integration

package apiv1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain"
	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/adapter"
	"tutoring-payments/internal/infra/adapters/payment"
	"tutoring-payments/internal/infra/api/apiv1"
	"tutoring-payments/internal/infra/metrics"
	"tutoring-payments/internal/usecase"
)

//
// ---------------- stub use cases ----------------
//

type stubPayments struct {
	usecase.PaymentUseCase

	payments map[string]*model.Payment
	invoices map[string]*model.Invoice

	checkoutIn   usecase.CreatePaymentInput
	checkoutErr  error
	notification *adapter.Notification
	notifyErr    error
	cancelled    []string
	access       bool
}

func newStubPayments() *stubPayments {
	return &stubPayments{payments: map[string]*model.Payment{}, invoices: map[string]*model.Invoice{}}
}

func (s *stubPayments) Checkout(ctx context.Context, in usecase.CreatePaymentInput) (*usecase.CheckoutResult, error) {
	s.checkoutIn = in
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	p := &model.Payment{ID: "pay-new", UserID: in.UserID, Type: in.Type, Amount: in.Amount, Currency: "GHS", Method: in.Method, Status: model.PaymentStatusProcessing}
	return &usecase.CheckoutResult{Payment: p, ClientSecret: "pi_1_secret"}, nil
}

func (s *stubPayments) Get(ctx context.Context, id string) (*model.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *stubPayments) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Payment, error) {
	var out []*model.Payment
	for _, p := range s.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPayments) Invoice(ctx context.Context, paymentID string) (*model.Invoice, error) {
	inv, ok := s.invoices[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

func (s *stubPayments) PayForSession(ctx context.Context, userID, sessionID string, method model.PaymentMethod) (*usecase.CheckoutResult, error) {
	if sessionID == "paid" {
		return nil, fmt.Errorf("%w: session already paid", domain.ErrAlreadyExists)
	}
	p := &model.Payment{ID: "pay-session", UserID: userID, Type: model.PaymentTypeSession, Amount: decimal.NewFromInt(50), Method: method, Status: model.PaymentStatusCompleted, SessionID: &sessionID}
	return &usecase.CheckoutResult{Payment: p}, nil
}

func (s *stubPayments) TopUp(ctx context.Context, userID string, amount decimal.Decimal, method model.PaymentMethod) (*usecase.CheckoutResult, error) {
	if err := model.ValidateAmount(amount); err != nil {
		return nil, err
	}
	p := &model.Payment{ID: "pay-topup", UserID: userID, Type: model.PaymentTypeWalletTopUp, Amount: amount, Method: method, Status: model.PaymentStatusProcessing}
	return &usecase.CheckoutResult{Payment: p, ClientSecret: "sec"}, nil
}

func (s *stubPayments) Cancel(ctx context.Context, id string) (*model.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.cancelled = append(s.cancelled, id)
	p.Status = model.PaymentStatusCancelled
	return p, nil
}

func (s *stubPayments) HandleNotification(ctx context.Context, n adapter.Notification) error {
	s.notification = &n
	return s.notifyErr
}

func (s *stubPayments) HasAccess(ctx context.Context, userID string, kind model.AccessKind, targetID string) (bool, error) {
	return s.access, nil
}

type stubWallets struct {
	usecase.WalletUseCase
	balance decimal.Decimal
}

func (s *stubWallets) Get(ctx context.Context, userID string) (*model.Wallet, error) {
	return &model.Wallet{ID: "w-" + userID, UserID: userID, Balance: s.balance, IsActive: true}, nil
}

type stubRefunds struct {
	usecase.RefundUseCase
	lastIn    usecase.RefundInput
	approvals []string
}

func (s *stubRefunds) Request(ctx context.Context, in usecase.RefundInput) (*model.Refund, error) {
	s.lastIn = in
	if in.PaymentID == "pending" {
		return nil, fmt.Errorf("%w: payment status is pending", domain.ErrNotEligible)
	}
	return &model.Refund{ID: "ref-1", PaymentID: in.PaymentID, Reason: in.Reason, Amount: decimal.NewFromInt(100), Status: model.RefundStatusRequested}, nil
}

func (s *stubRefunds) Approve(ctx context.Context, refundID, adminID, notes string) (*model.Refund, error) {
	s.approvals = append(s.approvals, refundID+":"+adminID+":"+notes)
	return &model.Refund{ID: refundID, Status: model.RefundStatusApproved, AdminNotes: notes, Amount: decimal.NewFromInt(100)}, nil
}

type stubSubscriptions struct {
	usecase.SubscriptionUseCase
}

//
// ---------------- harness ----------------
//

const (
	testSecret        = "jwt-test-secret"
	testWebhookSecret = "whsec_test"
)

type env struct {
	router   http.Handler
	auth     *apiv1.AuthManager
	payments *stubPayments
	wallets  *stubWallets
	refunds  *stubRefunds
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zerolog.Nop()
	e := &env{
		auth:     apiv1.NewAuthManager(testSecret, "marketplace"),
		payments: newStubPayments(),
		wallets:  &stubWallets{balance: decimal.RequireFromString("70")},
		refunds:  &stubRefunds{},
	}
	s := apiv1.NewServer(apiv1.Deps{
		Payments:      e.payments,
		Wallets:       e.wallets,
		Refunds:       e.refunds,
		Subscriptions: &stubSubscriptions{},
		Auth:          e.auth,
		Verifier:      payment.NewWebhookVerifier(testWebhookSecret, 5*time.Minute),
	}, &logger)
	r := chi.NewRouter()
	apiv1.RegisterAPIV1(r, s)
	e.router = r
	return e
}

func (e *env) token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := e.auth.Mint(user, role, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return tok
}

func (e *env) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// notificationsTotal sums gateway_notifications_total across results.
func notificationsTotal(t *testing.T) float64 {
	t.Helper()
	metrics.MustRegister()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sum float64
	for _, mf := range mfs {
		if mf.GetName() != "gateway_notifications_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

//
// ---------------- tests ----------------
//

func TestAuth(t *testing.T) {
	e := newEnv(t)

	t.Run("missing token", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/v1/wallet", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("code=%d", rec.Code)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := apiv1.NewAuthManager("other-secret", "marketplace")
		tok, _ := other.Mint("u1", apiv1.RoleUser, time.Hour)
		rec := e.do(t, http.MethodGet, "/api/v1/wallet", tok, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("code=%d", rec.Code)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		tok, _ := e.auth.Mint("u1", apiv1.RoleUser, -time.Minute)
		rec := e.do(t, http.MethodGet, "/api/v1/wallet", tok, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("code=%d", rec.Code)
		}
	})

	t.Run("admin routes need the admin role", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/v1/admin/refunds/ref-1/approve", e.token(t, "u1", apiv1.RoleUser), `{"notes":"ok"}`)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("code=%d", rec.Code)
		}
		if len(e.refunds.approvals) != 0 {
			t.Fatalf("approve must not run for non-admins")
		}
	})
}

func TestWallet_Get(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/wallet", e.token(t, "u1", apiv1.RoleUser), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
	}
	var w apiv1.Wallet
	decodeBody(t, rec, &w)
	if w.UserID != "u1" || w.Balance != "70.00" {
		t.Fatalf("unexpected wallet: %+v", w)
	}
}

func TestPayments_Create(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "u1", apiv1.RoleUser)

	t.Run("created with client secret", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/v1/payments", tok, `{"type":"resource","amount":"25.50","method":"stripe","resource_id":"r1"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
		}
		var out apiv1.Checkout
		decodeBody(t, rec, &out)
		if out.ClientSecret != "pi_1_secret" || out.Payment.Amount != "25.50" {
			t.Fatalf("unexpected checkout: %+v", out)
		}
		in := e.payments.checkoutIn
		if in.UserID != "u1" || in.Type != model.PaymentTypeResource || in.ResourceID == nil || *in.ResourceID != "r1" {
			t.Fatalf("use case got %+v", in)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/v1/payments", tok, `{"amount":`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code=%d", rec.Code)
		}
	})

	dedicated := []struct {
		name string
		body string
	}{
		{"subscription", `{"type":"subscription","amount":"0.01","method":"wallet","metadata":{"plan":"professional","months":120}}`},
		{"session", `{"type":"session","amount":"0.01","method":"wallet","session_id":"s9"}`},
		{"wallet top-up", `{"type":"wallet_topup","amount":"1000","method":"stripe"}`},
	}
	for _, tc := range dedicated {
		t.Run(tc.name+" uses its own route", func(t *testing.T) {
			e.payments.checkoutIn = usecase.CreatePaymentInput{}
			rec := e.do(t, http.MethodPost, "/api/v1/payments", tok, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), "dedicated endpoint") {
				t.Errorf("unexpected body %s", rec.Body.String())
			}
			if e.payments.checkoutIn.UserID != "" {
				t.Errorf("use case must not be called, got %+v", e.payments.checkoutIn)
			}
		})
	}

	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"invalid amount", fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidAmount), http.StatusBadRequest, "amount must be greater than zero"},
		{"insufficient balance", fmt.Errorf("%w: balance 70.00, required 100.00", domain.ErrInsufficientBalance), http.StatusPaymentRequired, "balance 70.00, required 100.00"},
		{"gateway failure hides detail", fmt.Errorf("%w: card_declined: secret detail", domain.ErrGatewayFailure), http.StatusBadGateway, "payment provider unavailable"},
		{"internal error", fmt.Errorf("db exploded"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e.payments.checkoutErr = tc.err
			defer func() { e.payments.checkoutErr = nil }()
			rec := e.do(t, http.MethodPost, "/api/v1/payments", tok, `{"type":"resource","amount":"100","method":"wallet"}`)
			if rec.Code != tc.code {
				t.Fatalf("code=%d want %d", rec.Code, tc.code)
			}
			if !strings.Contains(rec.Body.String(), tc.msg) {
				t.Fatalf("body %q does not contain %q", rec.Body.String(), tc.msg)
			}
			if strings.Contains(rec.Body.String(), "secret detail") || strings.Contains(rec.Body.String(), "exploded") {
				t.Fatalf("internal detail leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestPayments_GetIsOwnerScoped(t *testing.T) {
	e := newEnv(t)
	e.payments.payments["p1"] = &model.Payment{ID: "p1", UserID: "u1", Amount: decimal.NewFromInt(10), Status: model.PaymentStatusCompleted}

	if rec := e.do(t, http.MethodGet, "/api/v1/payments/p1", e.token(t, "u1", apiv1.RoleUser), ""); rec.Code != http.StatusOK {
		t.Fatalf("owner: code=%d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/v1/payments/p1", e.token(t, "u2", apiv1.RoleUser), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("stranger: code=%d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/v1/payments/p1", e.token(t, "ops", apiv1.RoleAdmin), ""); rec.Code != http.StatusOK {
		t.Fatalf("admin: code=%d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/v1/payments/p1/invoice", e.token(t, "u1", apiv1.RoleUser), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing invoice: code=%d", rec.Code)
	}
}

func TestSessions_Pay(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "u1", apiv1.RoleUser)

	rec := e.do(t, http.MethodPost, "/api/v1/sessions/s1/pay", tok, `{"method":"wallet"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := e.do(t, http.MethodPost, "/api/v1/sessions/paid/pay", tok, `{"method":"wallet"}`); rec.Code != http.StatusConflict {
		t.Fatalf("already paid: code=%d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/v1/sessions/s1/pay", tok, `{"method":"cash"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown method: code=%d", rec.Code)
	}
}

func TestWallet_TopUpRejectsBadAmount(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/wallet/topup", e.token(t, "u1", apiv1.RoleUser), `{"amount":"10.001","method":"paystack"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRefunds(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/payments/p1/refund", e.token(t, "u1", apiv1.RoleUser), `{"reason":"session_cancelled","detail":"never joined"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
	}
	if e.refunds.lastIn.UserID != "u1" || e.refunds.lastIn.Amount != nil {
		t.Fatalf("use case got %+v", e.refunds.lastIn)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/payments/pending/refund", e.token(t, "u1", apiv1.RoleUser), `{"reason":"other"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("not eligible: code=%d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/admin/refunds/ref-1/approve", e.token(t, "ops", apiv1.RoleAdmin), `{"notes":"looks fine"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(e.refunds.approvals) != 1 || e.refunds.approvals[0] != "ref-1:ops:looks fine" {
		t.Fatalf("approvals=%v", e.refunds.approvals)
	}
}

func TestAdmin_CancelPayment(t *testing.T) {
	e := newEnv(t)
	e.payments.payments["p1"] = &model.Payment{ID: "p1", UserID: "u1", Amount: decimal.NewFromInt(10), Status: model.PaymentStatusProcessing}
	rec := e.do(t, http.MethodPost, "/api/v1/admin/payments/p1/cancel", e.token(t, "ops", apiv1.RoleAdmin), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	if len(e.payments.cancelled) != 1 {
		t.Fatalf("cancel not called")
	}
}

func TestAccess(t *testing.T) {
	e := newEnv(t)
	e.payments.access = true
	rec := e.do(t, http.MethodGet, "/api/v1/access/video/v1", e.token(t, "u1", apiv1.RoleUser), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"has_access":true`) {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGatewayWebhook(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","metadata":{"payment_id":"p1"},"latest_charge":"ch_1"}}}`)

	send := func(e *env, sig string, b []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(b))
		if sig != "" {
			req.Header.Set(payment.SignatureHeader, sig)
		}
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("valid signature is applied", func(t *testing.T) {
		e := newEnv(t)
		rec := send(e, payment.SignPayload(testWebhookSecret, time.Now(), body), body)
		if rec.Code != http.StatusOK {
			t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
		}
		n := e.payments.notification
		if n == nil || n.EventID != "evt_1" || n.IntentID != "pi_1" || n.Metadata["payment_id"] != "p1" || n.Reference != "ch_1" {
			t.Fatalf("notification=%+v", n)
		}
	})

	t.Run("bad signature never reaches the use case", func(t *testing.T) {
		e := newEnv(t)
		for _, sig := range []string{"", payment.SignPayload("wrong", time.Now(), body), payment.SignPayload(testWebhookSecret, time.Now().Add(-time.Hour), body)} {
			if rec := send(e, sig, body); rec.Code != http.StatusBadRequest {
				t.Fatalf("sig %q: code=%d", sig, rec.Code)
			}
		}
		if e.payments.notification != nil {
			t.Fatalf("use case must not run")
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		e := newEnv(t)
		sig := payment.SignPayload(testWebhookSecret, time.Now(), body)
		tampered := bytes.Replace(body, []byte("pi_1"), []byte("pi_2"), 1)
		if rec := send(e, sig, tampered); rec.Code != http.StatusBadRequest {
			t.Fatalf("code=%d", rec.Code)
		}
	})

	t.Run("handled notifications are counted once by the use case", func(t *testing.T) {
		e := newEnv(t)
		before := notificationsTotal(t)
		if rec := send(e, payment.SignPayload(testWebhookSecret, time.Now(), body), body); rec.Code != http.StatusOK {
			t.Fatalf("code=%d", rec.Code)
		}
		e.payments.notifyErr = domain.ErrNotFound
		if rec := send(e, payment.SignPayload(testWebhookSecret, time.Now(), body), body); rec.Code != http.StatusOK {
			t.Fatalf("code=%d", rec.Code)
		}
		if got := notificationsTotal(t); got != before {
			t.Errorf("handler counted forwarded notifications: %v -> %v", before, got)
		}
		if rec := send(e, "", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("code=%d", rec.Code)
		}
		if got := notificationsTotal(t); got != before+1 {
			t.Errorf("rejected signature counted %v times, want 1", got-before)
		}
	})

	outcomes := []struct {
		name string
		err  error
		code int
	}{
		{"unknown payment is acknowledged", domain.ErrNotFound, http.StatusOK},
		{"busy payment asks for a retry", adapter.ErrLockNotAcquired, http.StatusConflict},
		{"unexpected error asks for a retry", fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tc := range outcomes {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			e.payments.notifyErr = tc.err
			if rec := send(e, payment.SignPayload(testWebhookSecret, time.Now(), body), body); rec.Code != tc.code {
				t.Fatalf("code=%d want %d", rec.Code, tc.code)
			}
		})
	}
}
