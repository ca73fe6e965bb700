package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"tutoring-payments/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// writeError maps domain errors to status codes. Client errors carry the
// wrapped detail; gateway and internal failures get a generic message.
func writeError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidPaymentType):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeMessage(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrNotEligible),
		errors.Is(err, domain.ErrAlreadyRequested),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInvalidTransition):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrGatewayFailure):
		log.Warn().Err(err).Msg("gateway failure")
		writeMessage(w, http.StatusBadGateway, "payment provider unavailable, please try again")
	default:
		log.Error().Err(err).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
