package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----
// Rejected before any state is created, surfaced synchronously.

func ErrInvalidAmount() *AppError {
	return New("VAL_001", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrAmountOutOfRange(min, max string) *AppError {
	return New("VAL_002", fmt.Sprintf("Amount out of allowed range [%s, %s]", min, max), http.StatusBadRequest)
}

func ErrInvalidPhone(phone string) *AppError {
	return New("VAL_003", fmt.Sprintf("Invalid recipient phone number: %s", phone), http.StatusBadRequest)
}

func ErrCurrencyMismatch(want, got string) *AppError {
	return New("VAL_004", fmt.Sprintf("Currency mismatch: expected %s, got %s", want, got), http.StatusBadRequest)
}

func Validation(detail string) *AppError {
	return New("VAL_005", detail, http.StatusBadRequest)
}

// ---- Transfer lifecycle (TRF) ----

func ErrChannelNotAvailable(channel string) *AppError {
	return New("TRF_001", fmt.Sprintf("Payment channel %s is unknown or inactive", channel), http.StatusUnprocessableEntity)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New("TRF_002", fmt.Sprintf("Invalid status transition %s -> %s", from, to), http.StatusConflict)
}

func ErrDuplicateSubmission(key string) *AppError {
	return New("TRF_003", fmt.Sprintf("A submission with idempotency key %q is already in progress", key), http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("TRF_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Withdrawal (WDR) ----

func ErrUnauthorized() *AppError {
	return New("WDR_001", "Actor is not the assigned intermediary", http.StatusForbidden)
}

func ErrTransactionNotReady(code, status string) *AppError {
	return New("WDR_002", fmt.Sprintf("Transaction %s is not ready for cash-out (status %s)", code, status), http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrStorage signals a retryable storage fault. When it comes back from a
// submission, no transaction row was created.
func ErrStorage(err error) *AppError {
	return Wrap("SYS_001", "Storage unavailable, please retry", http.StatusServiceUnavailable, err)
}

func InternalError(err error) *AppError {
	return Wrap("SYS_002", "Internal server error", http.StatusInternalServerError, err)
}
