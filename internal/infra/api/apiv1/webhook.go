package apiv1

import (
	"errors"
	"io"
	"net/http"
	"time"

	"tutoring-payments/internal/domain"
	"tutoring-payments/internal/domain/ports/adapter"
	"tutoring-payments/internal/infra/adapters/payment"
	"tutoring-payments/internal/infra/logging"
	"tutoring-payments/internal/infra/metrics"
)

// gatewayWebhook verifies and applies a gateway callback. A 2xx tells the
// gateway to stop retrying, so only transient failures answer 409/500.
// Handling results are counted by the payment use case; this layer only
// counts requests that never reach it.
func (s *Server) gatewayWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := s.handleWebhook(w, r)
	metrics.ObserveWebhookDuration(code, time.Since(start))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) int {
	log := logging.With(r.Context(), s.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "unreadable body")
		return http.StatusBadRequest
	}
	if err := s.verifier.Verify(r.Header.Get(payment.SignatureHeader), body); err != nil {
		metrics.IncWebhook("invalid_signature")
		log.Warn().Err(err).Msg("webhook signature rejected")
		writeMessage(w, http.StatusBadRequest, "invalid signature")
		return http.StatusBadRequest
	}
	n, err := payment.ParseNotification(body)
	if err != nil {
		metrics.IncWebhook("malformed")
		writeMessage(w, http.StatusBadRequest, "malformed event")
		return http.StatusBadRequest
	}

	err = s.payments.HandleNotification(r.Context(), n)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return http.StatusOK
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Str("event_id", n.EventID).Str("intent_id", n.IntentID).Msg("webhook for unknown payment")
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return http.StatusOK
	case errors.Is(err, adapter.ErrLockNotAcquired):
		writeMessage(w, http.StatusConflict, "payment busy, retry later")
		return http.StatusConflict
	default:
		log.Error().Err(err).Str("event_id", n.EventID).Msg("webhook handling failed")
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return http.StatusInternalServerError
	}
}
