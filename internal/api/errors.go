package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/neogend-core/internal/auth"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// unauthenticatedMessage is the only text a client ever sees for a
// rejected credential, whatever the internal reason.
const unauthenticatedMessage = "authentication required"

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, unauthenticatedMessage)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeAuthError maps an error from the auth package onto a response.
// Unclassified errors are logged and reported as 500 with fallback as the
// message.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeUnauthorized(w)
	case errors.Is(err, auth.ErrInvalidRank):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid privilege rank")
	case errors.Is(err, auth.ErrForbidden):
		writeForbidden(w, forbiddenMessage(err))
	case errors.Is(err, auth.ErrAccountNotFound):
		writeNotFound(w, "account not found")
	case errors.Is(err, auth.ErrNipolExists):
		writeConflict(w, "nipol or email already registered")
	default:
		s.logger.Error(fallback,
			"error", err,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, fallback)
	}
}

func forbiddenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrProtectedAccount):
		return "account is protected"
	case errors.Is(err, auth.ErrSelfAction):
		return "action cannot target your own account"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "current password is incorrect"
	default:
		return "insufficient privilege"
	}
}

func isUnauthenticated(err error) bool {
	return errors.Is(err, auth.ErrUnauthenticated)
}

func isNotFound(err error) bool {
	return errors.Is(err, auth.ErrAccountNotFound)
}
