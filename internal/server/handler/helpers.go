// Package handler implements the HTTP API surface. Each handler declares a
// local service interface so the package does not depend on concrete
// implementations.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/xuanbach0212/predictum/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code.
// If marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain sentinel errors to HTTP status codes. Unrecognized
// errors map to 500; callers should log those before responding.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNothingToClaim):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrMarketExpired),
		errors.Is(err, domain.ErrNotResolved),
		errors.Is(err, domain.ErrAlreadyClaimed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// domainMessage returns the sentinel text for client responses so wrap
// context like "ledger: place bet:" stays out of API bodies. Validation
// failures keep their reason: the ledger wraps ErrValidation as
// "validation failed: <reason>" and that innermost wrap is surfaced
// verbatim.
func domainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return validationMessage(err)
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrNothingToClaim,
		domain.ErrInvalidAmount,
		domain.ErrInsufficientBalance,
		domain.ErrInvalidState,
		domain.ErrMarketExpired,
		domain.ErrNotResolved,
		domain.ErrAlreadyClaimed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal server error"
}

// validationMessage unwraps to the deepest wrap above the ErrValidation
// sentinel, which is where the reason is attached. Service-level wraps
// further out stay hidden.
func validationMessage(err error) string {
	msg := domain.ErrValidation.Error()
	for e := err; e != nil; e = errors.Unwrap(e) {
		if e == domain.ErrValidation {
			break
		}
		if errors.Is(e, domain.ErrValidation) {
			msg = e.Error()
		}
	}
	return msg
}

// pathID extracts and parses an int64 {id} path parameter.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
