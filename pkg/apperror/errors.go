package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string                 `json:"error_code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"` // Wrapped internal error (not exposed to client)
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

// WithDetail attaches a client-visible detail and returns the same error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
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

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Error codes.
const (
	CodeInvalidAPIKey       = "AUTH_001"
	CodeInvalidToken        = "AUTH_002"
	CodeValidation          = "VAL_001"
	CodeInsufficientBalance = "PAY_001"
	CodeDuplicateEvent      = "PAY_003"
	CodeNotFound            = "PAY_004"
	CodeVerificationFailed  = "PAY_005"
	CodeOutOfStock          = "INV_001"
	CodeRateLimited         = "RATE_001"
	CodeInternal            = "SYS_001"
	CodePersistenceFailure  = "SYS_002"
	CodeMaintenance         = "SYS_003"
)

// ---- Authentication (AUTH) ----

func ErrInvalidAPIKey() *AppError {
	return New(CodeInvalidAPIKey, "Invalid API key", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error with the given message.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return Validation("Amount must be a positive integer")
}

// ---- Payment & wallet (PAY) ----

// ErrInsufficientBalance carries the balance that was available and the amount asked for.
func ErrInsufficientBalance(current, required int64) *AppError {
	return New(CodeInsufficientBalance, "Insufficient balance in wallet", http.StatusPaymentRequired).
		WithDetail("current_balance", current).
		WithDetail("required", required)
}

func ErrDuplicateEvent() *AppError {
	return New(CodeDuplicateEvent, "Payment event already processed", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrVerificationFailed(reasons []string) *AppError {
	return New(CodeVerificationFailed, "Payment verification failed", http.StatusUnprocessableEntity).
		WithDetail("reasons", reasons)
}

// ---- Inventory (INV) ----

func ErrOutOfStock(plan string) *AppError {
	return New(CodeOutOfStock, "No inventory available", http.StatusConflict).
		WithDetail("plan", plan)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// ErrPersistence marks a storage failure; the caller may retry the request.
func ErrPersistence(err error) *AppError {
	return Wrap(CodePersistenceFailure, "Storage temporarily unavailable", http.StatusServiceUnavailable, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap(CodeInternal, "Encryption service failure", http.StatusInternalServerError, err)
}

func ErrMaintenance(message string) *AppError {
	return New(CodeMaintenance, message, http.StatusServiceUnavailable)
}
