package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-checkable failure category of an AppError.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindAuthorization Kind = "AUTHORIZATION"
	KindState         Kind = "STATE"
	KindPersistence   Kind = "PERSISTENCE"
	KindConstraint    Kind = "CONSTRAINT"
	KindRateLimit     Kind = "RATE_LIMIT"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Kind       Kind   `json:"kind"`
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

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// KindOf returns the Kind of err, or KindPersistence for errors that are not AppErrors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindPersistence
}

// As extracts an *AppError from err.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// ---- Validation (VAL) ----

// Validation returns a generic validation error with the given message.
func Validation(message string) *AppError {
	return New(KindValidation, "VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New(KindValidation, "VAL_002", "amount must be greater than zero", http.StatusBadRequest)
}

func ErrExceedsLimit() *AppError {
	return New(KindValidation, "VAL_003", "amount exceeds limit", http.StatusBadRequest)
}

func ErrSelfTransfer() *AppError {
	return New(KindValidation, "VAL_004", "cannot transfer to self", http.StatusBadRequest)
}

func ErrMissingDescription() *AppError {
	return New(KindValidation, "VAL_005", "description is required", http.StatusBadRequest)
}

func ErrUnknownPurpose(purpose string) *AppError {
	return New(KindValidation, "VAL_006", fmt.Sprintf("unknown otp purpose %q", purpose), http.StatusBadRequest)
}

func ErrPayloadTooLarge() *AppError {
	return New(KindValidation, "VAL_007", "request body too large", http.StatusRequestEntityTooLarge)
}

func ErrAmountPrecision() *AppError {
	return New(KindValidation, "VAL_008", "amount has more than 4 decimal places", http.StatusBadRequest)
}

// ---- Authorization (AUTH) ----

func ErrInvalidOTP() *AppError {
	return New(KindAuthorization, "AUTH_001", "otp code invalid or expired", http.StatusUnauthorized)
}

func ErrInvalidCredentials() *AppError {
	return New(KindAuthorization, "AUTH_002", "invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(KindAuthorization, "AUTH_003", "invalid or expired token", http.StatusUnauthorized)
}

func ErrNotAdmin() *AppError {
	return New(KindAuthorization, "AUTH_004", "administrator privileges required", http.StatusForbidden)
}

func ErrUsernameExists() *AppError {
	return New(KindValidation, "AUTH_005", "username already exists", http.StatusConflict)
}

func ErrNotWalletOwner() *AppError {
	return New(KindAuthorization, "AUTH_006", "caller does not own the wallet", http.StatusForbidden)
}

// ---- Wallet state (STATE) ----

func ErrWalletNotFound() *AppError {
	return New(KindState, "STATE_001", "wallet not found", http.StatusNotFound)
}

func ErrWalletLocked() *AppError {
	return New(KindState, "STATE_002", "wallet is locked", http.StatusLocked)
}

func ErrInsufficientFunds() *AppError {
	return New(KindState, "STATE_003", "insufficient balance", http.StatusUnprocessableEntity)
}

func ErrMasterSupplyExhausted() *AppError {
	return New(KindState, "STATE_004", "master supply insufficient", http.StatusUnprocessableEntity)
}

func ErrTransactionNotFound() *AppError {
	return New(KindState, "STATE_005", "transaction not found", http.StatusNotFound)
}

func ErrTransactionFinal() *AppError {
	return New(KindState, "STATE_006", "transaction is not pending", http.StatusConflict)
}

func ErrUserNotFound() *AppError {
	return New(KindState, "STATE_007", "user not found", http.StatusNotFound)
}

func ErrMasterWalletImmutable() *AppError {
	return New(KindState, "STATE_008", "master wallet cannot be modified", http.StatusConflict)
}

// ---- Persistence (SYS) ----

func ErrPersistence(err error) *AppError {
	return Wrap(KindPersistence, "SYS_001", "persistence failure", http.StatusInternalServerError, err)
}

func ErrConstraintViolation(err error) *AppError {
	return Wrap(KindConstraint, "SYS_002", "constraint violation", http.StatusConflict, err)
}

// InternalError wraps an internal error as a SYS_001 persistence error.
func InternalError(err error) *AppError {
	return ErrPersistence(err)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimit, "RATE_001", "rate limit exceeded", http.StatusTooManyRequests)
}
