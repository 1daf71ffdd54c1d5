package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-specific error with a code and message.
// Code doubles as the machine-readable "error" key in API responses.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeAuthMissing             = "missing_token"
	ErrCodeAuthInvalid             = "invalid_token"
	ErrCodeUserNotFound            = "user_not_found"
	ErrCodeTierInsufficient        = "insufficient_tier"
	ErrCodeSubscriptionInactive    = "subscription_inactive"
	ErrCodeUsageExceeded           = "usage_limit_exceeded"
	ErrCodeValidation              = "validation_error"
	ErrCodeWebhookSignatureMissing = "missing_signature"
	ErrCodeWebhookSignatureInvalid = "invalid_signature"
	ErrCodeInvalidCredentials      = "invalid_credentials"
	ErrCodeNotFound                = "not_found"
	ErrCodeBadRequest              = "bad_request"
	ErrCodeInternal                = "internal_error"
)

// StatusCode maps an error code to its HTTP status.
func StatusCode(code string) int {
	switch code {
	case ErrCodeAuthMissing, ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case ErrCodeAuthInvalid, ErrCodeUserNotFound, ErrCodeTierInsufficient, ErrCodeSubscriptionInactive:
		return http.StatusForbidden
	case ErrCodeUsageExceeded:
		return http.StatusTooManyRequests
	case ErrCodeValidation, ErrCodeWebhookSignatureMissing, ErrCodeWebhookSignatureInvalid, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewUserNotFoundError creates the error returned when a user record is missing
func NewUserNotFoundError() error {
	return &DomainError{
		Code:    ErrCodeUserNotFound,
		Message: "User not found",
	}
}

// NewInvalidTokenError creates the single error every token failure collapses into
func NewInvalidTokenError() error {
	return &DomainError{
		Code:    ErrCodeAuthInvalid,
		Message: "Invalid or expired token",
	}
}

// NewInvalidCredentialsError creates a new invalid credentials error
func NewInvalidCredentialsError() error {
	return &DomainError{
		Code:    ErrCodeInvalidCredentials,
		Message: "Invalid email or password",
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(msg string) error {
	return &DomainError{
		Code:    ErrCodeBadRequest,
		Message: msg,
	}
}

// Helper functions to check error types

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}

// IsNotFound checks if the error is a not found error (generic or user)
func IsNotFound(err error) bool {
	code := GetErrorCode(err)
	return code == ErrCodeNotFound || code == ErrCodeUserNotFound
}

// IsInvalidToken checks if the error is an invalid token error
func IsInvalidToken(err error) bool {
	return GetErrorCode(err) == ErrCodeAuthInvalid
}
