package apiv1

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tutoring-payments/internal/usecase"
)

// NotificationVerifier authenticates a raw gateway callback.
type NotificationVerifier interface {
	Verify(header string, body []byte) error
}

// Server implements the /api/v1 handlers and the gateway webhook.
type Server struct {
	payments      usecase.PaymentUseCase
	wallets       usecase.WalletUseCase
	refunds       usecase.RefundUseCase
	subscriptions usecase.SubscriptionUseCase
	auth          *AuthManager
	verifier      NotificationVerifier
	log           *zerolog.Logger
	now           func() time.Time
}

type Deps struct {
	Payments      usecase.PaymentUseCase
	Wallets       usecase.WalletUseCase
	Refunds       usecase.RefundUseCase
	Subscriptions usecase.SubscriptionUseCase
	Auth          *AuthManager
	Verifier      NotificationVerifier
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "APIv1").Logger()
	return &Server{
		payments:      d.Payments,
		wallets:       d.Wallets,
		refunds:       d.Refunds,
		subscriptions: d.Subscriptions,
		auth:          d.Auth,
		verifier:      d.Verifier,
		log:           &l,
		now:           time.Now,
	}
}

// RegisterAPIV1 mounts the authenticated API under /api/v1 and the unauthenticated
// (signature-checked) gateway webhook under /webhooks.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Post("/webhooks/gateway", s.gatewayWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Authenticate)

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", s.createPayment)
			r.Get("/", s.listPayments)
			r.Get("/{id}", s.getPayment)
			r.Get("/{id}/invoice", s.getInvoice)
			r.Post("/{id}/refund", s.requestRefund)
			r.Get("/{id}/refund", s.getPaymentRefund)
		})
		r.Post("/sessions/{id}/pay", s.payForSession)
		r.Post("/subscriptions", s.subscribe)
		r.Get("/subscriptions/me", s.mySubscription)

		r.Get("/wallet", s.getWallet)
		r.Get("/wallet/transactions", s.walletHistory)
		r.Post("/wallet/topup", s.topUp)

		r.Get("/access/{kind}/{id}", s.checkAccess)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/refunds/{id}", s.adminGetRefund)
			r.Post("/refunds/{id}/review", s.adminRefundAction(s.refunds.Review))
			r.Post("/refunds/{id}/approve", s.adminRefundAction(s.refunds.Approve))
			r.Post("/refunds/{id}/reject", s.adminRefundAction(s.refunds.Reject))
			r.Post("/refunds/{id}/process", s.adminProcessRefund)
			r.Post("/payments/{id}/cancel", s.adminCancelPayment)
		})
	})
}

const maxBodyBytes = 1 << 20

// decode reads a JSON body; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func principal(r *http.Request) Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}
