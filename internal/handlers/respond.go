package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"pennytrail/internal/account"
	"pennytrail/internal/auth"
	"pennytrail/internal/metrics"
	"pennytrail/internal/storage"
	"pennytrail/internal/validation"
)

const maxBodyBytes = 1 << 20

// Client-facing messages not owned by the validation package.
const (
	msgUserExists      = "User already exists"
	msgBadCredentials  = "Invalid credentials"
	msgAuthRequired    = "Authentication required"
	msgInvalidSession  = "Invalid or expired session"
	msgNotFound        = "Not found"
	msgExpenseNotFound = "Expense not found"
	msgInvalidBody     = "Invalid request body"
	msgInternal        = "Internal server error"
)

// messageResponse is the body of every message-only response.
type messageResponse struct {
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// statusFor maps an error to its HTTP status and client message.
func statusFor(err error) (int, string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, storage.ErrDuplicateEmail):
		return http.StatusBadRequest, msgUserExists
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest, validation.MsgInvalidInput
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgBadCredentials
	case errors.Is(err, auth.ErrAuthenticationRequired):
		return http.StatusUnauthorized, msgAuthRequired
	case errors.Is(err, auth.ErrInvalidSession):
		return http.StatusUnauthorized, msgInvalidSession
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// writeError answers with the status mapped from err. Internal failures are
// logged and never described to the client.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger(r).Error().Err(err).Msg("request failed")
	} else {
		logger(r).Debug().Err(err).Int("status", status).Msg("request rejected")
	}

	resp := messageResponse{Message: message}
	var verr *validation.Error
	if errors.As(err, &verr) {
		resp.Errors = verr.Fields
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return validation.NewError(msgInvalidBody)
	}
	return nil
}

// outcome classifies an authentication result for metrics.
func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	if status, _ := statusFor(err); status < http.StatusInternalServerError {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

func logger(r *http.Request) *zerolog.Logger {
	return hlog.FromRequest(r)
}
