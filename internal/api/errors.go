package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onur02004/MainRoadmap-sub000/internal/control"
	"github.com/onur02004/MainRoadmap-sub000/internal/device"
	"github.com/onur02004/MainRoadmap-sub000/internal/executor"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeUnauthorized     = "unauthorised"
	ErrCodeForbidden        = "forbidden"
	ErrCodeInternal         = "internal_error"
	ErrCodeValidation       = "validation_error"
	ErrCodeInvalidOrExpired = "invalid_or_expired"
	ErrCodeUnsupported      = "unsupported"
	ErrCodeNotImplemented   = "not_implemented"
	ErrCodeExecutionFailed  = "execution_failed"
	ErrCodeRateLimited      = "rate_limited"
)

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

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// executionDetails is the details payload of an execution_failed error.
type executionDetails struct {
	Reason   string `json:"reason"`
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// isValidationError reports whether err is caused by bad caller input.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidName) ||
		errors.Is(err, device.ErrUnknownKind) ||
		errors.Is(err, device.ErrInvalidMode) ||
		errors.Is(err, device.ErrInvalidParams) ||
		errors.Is(err, executor.ErrInvalidParams)
}

// writeDomainError maps a domain error to its HTTP response.
// Unrecognised errors are logged and reported as internal errors.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var execErr *control.ExecutionError

	switch {
	case errors.As(err, &execErr):
		writeJSON(w, http.StatusInternalServerError, Error{
			Status:  http.StatusInternalServerError,
			Code:    ErrCodeExecutionFailed,
			Message: "device action failed",
			Details: executionDetails{
				Reason:   string(execErr.Reason),
				ExitCode: execErr.ExitCode,
				Stdout:   execErr.Stdout,
				Stderr:   execErr.Stderr,
			},
		})
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, device.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "device not found")
	case errors.Is(err, device.ErrStateNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "state not found")
	case errors.Is(err, device.ErrForbidden):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "device not owned by caller")
	case errors.Is(err, device.ErrInvalidOrExpired):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidOrExpired, "invalid or expired code")
	case errors.Is(err, executor.ErrUnsupported):
		writeError(w, http.StatusBadRequest, ErrCodeUnsupported, err.Error())
	case errors.Is(err, executor.ErrNotImplemented):
		writeError(w, http.StatusBadRequest, ErrCodeNotImplemented, err.Error())
	default:
		s.logger.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "internal server error")
	}
}
