package apiv1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain"
	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/infra/logging"
	"tutoring-payments/internal/usecase"
)

// ---- payments ----

type createPaymentRequest struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Method      string          `json:"method"`
	Description string          `json:"description"`
	SessionID   *string         `json:"session_id"`
	ResourceID  *string         `json:"resource_id"`
	VideoID     *string         `json:"video_id"`
	Metadata    map[string]any  `json:"metadata"`
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Sessions, plans and top-ups have dedicated routes that price them server side.
	switch model.PaymentType(req.Type) {
	case model.PaymentTypeSession, model.PaymentTypeSubscription, model.PaymentTypeWalletTopUp:
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("%s payments use their dedicated endpoint", req.Type))
		return
	}
	res, err := s.payments.Checkout(r.Context(), usecase.CreatePaymentInput{
		UserID:      principal(r).UserID,
		Type:        model.PaymentType(req.Type),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Method:      model.PaymentMethod(req.Method),
		Description: req.Description,
		SessionID:   req.SessionID,
		ResourceID:  req.ResourceID,
		VideoID:     req.VideoID,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusCreated, Checkout{Payment: toPayment(res.Payment), ClientSecret: res.ClientSecret})
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.payments.ListByUser(r.Context(), principal(r).UserID, queryLimit(r))
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	items := make([]Payment, 0, len(list))
	for _, p := range list {
		items = append(items, toPayment(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ownedPayment loads a payment the caller may see; other users' payments look absent.
func (s *Server) ownedPayment(r *http.Request) (*model.Payment, error) {
	p, err := s.payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if who := principal(r); p.UserID != who.UserID && !who.IsAdmin() {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.ownedPayment(r)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toPayment(p))
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	p, err := s.ownedPayment(r)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	inv, err := s.payments.Invoice(r.Context(), p.ID)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoice(inv))
}

type methodRequest struct {
	Method string `json:"method"`
}

func (s *Server) payForSession(w http.ResponseWriter, r *http.Request) {
	var req methodRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	method, err := model.ParsePaymentMethod(req.Method)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	res, err := s.payments.PayForSession(r.Context(), principal(r).UserID, chi.URLParam(r, "id"), method)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusCreated, Checkout{Payment: toPayment(res.Payment), ClientSecret: res.ClientSecret})
}

func (s *Server) checkAccess(w http.ResponseWriter, r *http.Request) {
	ok, err := s.payments.HasAccess(r.Context(), principal(r).UserID, model.AccessKind(chi.URLParam(r, "kind")), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_access": ok})
}

// ---- subscriptions ----

type subscribeRequest struct {
	Plan   string `json:"plan"`
	Method string `json:"method"`
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	plan, err := model.ParsePlanTier(req.Plan)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	method, err := model.ParsePaymentMethod(req.Method)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	res, err := s.payments.Subscribe(r.Context(), principal(r).UserID, plan, method)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusCreated, Checkout{Payment: toPayment(res.Payment), ClientSecret: res.ClientSecret})
}

func (s *Server) mySubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.Get(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub, s.now()))
}

// ---- wallet ----

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	wl, err := s.wallets.Get(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toWallet(wl))
}

func (s *Server) walletHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.wallets.History(r.Context(), principal(r).UserID, queryLimit(r))
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	items := make([]WalletTransaction, 0, len(list))
	for _, t := range list {
		items = append(items, toWalletTransaction(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

func (s *Server) topUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	method, err := model.ParsePaymentMethod(req.Method)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	res, err := s.payments.TopUp(r.Context(), principal(r).UserID, req.Amount, method)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusCreated, Checkout{Payment: toPayment(res.Payment), ClientSecret: res.ClientSecret})
}

// ---- refunds ----

type refundRequest struct {
	Reason string           `json:"reason"`
	Detail string           `json:"detail"`
	Amount *decimal.Decimal `json:"amount"`
}

func (s *Server) requestRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ref, err := s.refunds.Request(r.Context(), usecase.RefundInput{
		UserID:    principal(r).UserID,
		PaymentID: chi.URLParam(r, "id"),
		Reason:    model.RefundReason(req.Reason),
		Detail:    req.Detail,
		Amount:    req.Amount,
	})
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusCreated, toRefund(ref))
}

func (s *Server) getPaymentRefund(w http.ResponseWriter, r *http.Request) {
	p, err := s.ownedPayment(r)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	ref, err := s.refunds.GetByPayment(r.Context(), p.ID)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toRefund(ref))
}

// ---- admin ----

type adminNotesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) adminGetRefund(w http.ResponseWriter, r *http.Request) {
	ref, err := s.refunds.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toRefund(ref))
}

type refundAction func(ctx context.Context, refundID, adminID, notes string) (*model.Refund, error)

func (s *Server) adminRefundAction(action refundAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminNotesRequest
		if err := decode(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ref, err := action(r.Context(), chi.URLParam(r, "id"), principal(r).UserID, req.Notes)
		if err != nil {
			writeError(w, logging.With(r.Context(), s.log), err)
			return
		}
		writeJSON(w, http.StatusOK, toRefund(ref))
	}
}

func (s *Server) adminProcessRefund(w http.ResponseWriter, r *http.Request) {
	ref, err := s.refunds.Process(r.Context(), chi.URLParam(r, "id"), principal(r).UserID)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toRefund(ref))
}

func (s *Server) adminCancelPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.payments.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toPayment(p))
}
