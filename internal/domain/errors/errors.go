package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrAlreadyExists       = errors.New("resource already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrEmailInUse          = errors.New("email already registered")
	ErrAccountBanned       = errors.New("account banned")
	ErrBiometricDuplicate  = errors.New("biometric already registered")
	ErrBiometricProcessing = errors.New("biometric processing failed")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrRollbackForbidden   = errors.New("rollback not allowed past payment success")
	ErrConflict            = errors.New("concurrent update conflict")
)

// Stable error codes exposed to callers. Clients branch on these, never on
// raw messages.
const (
	CodeBiometricDuplicate  = "BIOMETRIC_DUPLICATE"
	CodeBiometricProcessing = "BIOMETRIC_PROCESSING_FAILED"
	CodeEmailInUse          = "EMAIL_IN_USE"
	CodeAccountBanned       = "ACCOUNT_BANNED"
	CodePaymentDeclined     = "PAYMENT_DECLINED"
	CodeRequiresAction      = "PAYMENT_REQUIRES_ACTION"
	CodeNotFound            = "REGISTRATION_NOT_FOUND"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternal            = "INTERNAL"
)

// AppError represents an application error with an HTTP status and a stable
// machine-readable code.
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidInput, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternal, "internal server error", err)
}

// CodeFor maps a domain error to its stable client-facing code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrBiometricDuplicate):
		return CodeBiometricDuplicate
	case errors.Is(err, ErrBiometricProcessing):
		return CodeBiometricProcessing
	case errors.Is(err, ErrEmailInUse), errors.Is(err, ErrAlreadyExists):
		return CodeEmailInUse
	case errors.Is(err, ErrAccountBanned):
		return CodeAccountBanned
	case errors.Is(err, ErrPaymentDeclined):
		return CodePaymentDeclined
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	default:
		return CodeInternal
	}
}
