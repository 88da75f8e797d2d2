package domain

import (
	"errors"
	"net/http"
)

// AppError is an error with a stable code and the HTTP status it maps to
type AppError struct {
	Code    string
	Message string
	Status  int
}

func (e *AppError) Error() string {
	return e.Message
}

func newAppError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// Authentication and OTP errors
var (
	ErrUserNotFound       = newAppError("USER_NOT_FOUND", http.StatusNotFound, "user not found")
	ErrTooManyRequests    = newAppError("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many OTP requests, try again later")
	ErrOtpInvalid         = newAppError("OTP_INVALID", http.StatusUnauthorized, "invalid or expired OTP")
	ErrInvalidSignature   = newAppError("INVALID_SIGNATURE", http.StatusUnauthorized, "token signature is invalid")
	ErrExpired            = newAppError("EXPIRED", http.StatusUnauthorized, "token has expired")
	ErrMalformed          = newAppError("MALFORMED", http.StatusUnauthorized, "token is malformed")
	ErrAccountInactive    = newAppError("ACCOUNT_INACTIVE", http.StatusForbidden, "user account is inactive")
	ErrInvalidCredentials = newAppError("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrUnauthorized       = newAppError("UNAUTHORIZED", http.StatusUnauthorized, "authentication required")
	ErrForbidden          = newAppError("FORBIDDEN", http.StatusForbidden, "you don't have permission to access this resource")
)

// User management errors
var (
	ErrValidation           = newAppError("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrEmailAlreadyExists   = newAppError("CONFLICT", http.StatusConflict, "email already exists")
	ErrOldPasswordWrong     = newAppError("INVALID_CREDENTIALS", http.StatusUnauthorized, "current password is incorrect")
	ErrCannotChangeOwnRole  = newAppError("FORBIDDEN", http.StatusForbidden, "cannot change your own role")
	ErrCannotDeactivateSelf = newAppError("FORBIDDEN", http.StatusForbidden, "cannot deactivate your own account")
	ErrInternal             = newAppError("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// ValidationError carries a field-specific message while still matching ErrValidation
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) true for every ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError returns a validation failure with a specific message
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// AsAppError resolves err to the AppError it represents, defaulting to ErrInternal
func AsAppError(err error) *AppError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &AppError{Code: ErrValidation.Code, Message: ve.Message, Status: ErrValidation.Status}
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return ErrInternal
}
