package errors

import (
	"fmt"
	"net/http"
)

// Error codes
const (
	// 4xx Client Errors
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInvalidState        = "INVALID_STATE_TRANSITION"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimited         = "RATE_LIMITED"

	// zkLogin flow
	CodeNonceMismatch      = "NONCE_MISMATCH"
	CodeMalformedToken     = "MALFORMED_TOKEN"
	CodeExpiredWindow      = "EXPIRED_WINDOW"
	CodeMaterialExpired    = "MATERIAL_EXPIRED"
	CodeKeyMismatch        = "KEY_MISMATCH"
	CodeProofRejected      = "PROOF_REJECTED"
	CodeSubmissionRejected = "SUBMISSION_REJECTED"

	// 5xx Server Errors
	CodeInternal          = "INTERNAL_ERROR"
	CodeDBError           = "DB_ERROR"
	CodeLockFailed        = "LOCK_FAILED"
	CodeChainError        = "CHAIN_ERROR"
	CodeProverUnavailable = "PROVER_UNAVAILABLE"
	CodeProofMalformed    = "PROOF_MALFORMED"
	CodeUpstreamError     = "UPSTREAM_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// Error constructors

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func InsufficientBalance(available, requested string) *AppError {
	return &AppError{
		Code:       CodeInsufficientBalance,
		Message:    fmt.Sprintf("Available balance %s is less than requested %s", available, requested),
		StatusCode: http.StatusBadRequest,
		Details: map[string]any{
			"available": available,
			"requested": requested,
		},
	}
}

func InvalidStateTransition(from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf("Cannot transition from %s to %s", from, to),
		StatusCode: http.StatusBadRequest,
		Details: map[string]any{
			"from": from,
			"to":   to,
		},
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func DBError(err error) *AppError {
	return &AppError{
		Code:       CodeDBError,
		Message:    "Database error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

func LockFailed(resource string) *AppError {
	return &AppError{
		Code:       CodeLockFailed,
		Message:    fmt.Sprintf("Failed to acquire lock for %s", resource),
		StatusCode: http.StatusConflict,
	}
}

func ChainError(message string) *AppError {
	return &AppError{
		Code:       CodeChainError,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func RateLimited() *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    "Too many requests",
		StatusCode: http.StatusTooManyRequests,
	}
}

func NonceMismatch() *AppError {
	return &AppError{
		Code:       CodeNonceMismatch,
		Message:    "Identity token was not issued for this session",
		StatusCode: http.StatusUnauthorized,
	}
}

func MalformedToken(message string) *AppError {
	return &AppError{
		Code:       CodeMalformedToken,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func ExpiredWindow() *AppError {
	return &AppError{
		Code:       CodeExpiredWindow,
		Message:    "Login window has expired, start a new login",
		StatusCode: http.StatusUnauthorized,
	}
}

// MaterialExpired reports short-lived session material that has to be fetched again
func MaterialExpired(message string) *AppError {
	return &AppError{
		Code:       CodeMaterialExpired,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func KeyMismatch() *AppError {
	return &AppError{
		Code:       CodeKeyMismatch,
		Message:    "Ephemeral key does not match the proof",
		StatusCode: http.StatusConflict,
	}
}

func ProofRejected(message string) *AppError {
	return &AppError{
		Code:       CodeProofRejected,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func SubmissionRejected(reason, digest string) *AppError {
	details := map[string]any{"reason": reason}
	if digest != "" {
		details["digest"] = digest
	}
	return &AppError{
		Code:       CodeSubmissionRejected,
		Message:    "Transaction was rejected by the node",
		StatusCode: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func ProverUnavailable() *AppError {
	return &AppError{
		Code:       CodeProverUnavailable,
		Message:    "Proving service is unavailable, retry later",
		StatusCode: http.StatusServiceUnavailable,
	}
}

func ProofMalformed() *AppError {
	return &AppError{
		Code:       CodeProofMalformed,
		Message:    "Proving service returned an unusable proof",
		StatusCode: http.StatusBadGateway,
	}
}

func UpstreamError(message string) *AppError {
	return &AppError{
		Code:       CodeUpstreamError,
		Message:    message,
		StatusCode: http.StatusBadGateway,
	}
}
