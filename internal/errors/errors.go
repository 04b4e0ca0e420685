package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of login-flow error. The string form is
// the client-facing category; underlying detail stays server-side.
type ErrorCode string

const (
	// ErrCodeDisabled indicates the provider feature is switched off.
	// This is a normal operating mode, not a fault.
	ErrCodeDisabled ErrorCode = "disabled"
	// ErrCodeConfigInvalid indicates malformed provider configuration.
	ErrCodeConfigInvalid ErrorCode = "config_invalid"
	// ErrCodeProviderUnreachable indicates OIDC discovery failed.
	ErrCodeProviderUnreachable ErrorCode = "provider_unreachable"
	// ErrCodeProviderError indicates a token exchange or user-info failure.
	ErrCodeProviderError ErrorCode = "provider_error"
	// ErrCodeSessionExpired indicates missing or already-consumed
	// anti-forgery bindings.
	ErrCodeSessionExpired ErrorCode = "session_expired"
	// ErrCodeStateMismatch indicates the callback state did not match the
	// bound attempt (potential CSRF/replay).
	ErrCodeStateMismatch ErrorCode = "state_mismatch"
	// ErrCodeNonceMismatch indicates the id-token nonce did not match the
	// bound attempt.
	ErrCodeNonceMismatch ErrorCode = "nonce_mismatch"
	// ErrCodeSubjectMismatch indicates the user-info subject differed from
	// the id-token subject.
	ErrCodeSubjectMismatch ErrorCode = "subject_mismatch"
	// ErrCodeNoEmailClaim indicates the provider returned no usable email.
	ErrCodeNoEmailClaim ErrorCode = "no_email_claim"
	// ErrCodeUserNotFound indicates no local account exists and
	// auto-provisioning is disabled.
	ErrCodeUserNotFound ErrorCode = "user_not_found"
	// ErrCodeProvisioningFailed indicates local account creation failed.
	ErrCodeProvisioningFailed ErrorCode = "provisioning_failed"
	// ErrCodeUserSuspended indicates the local account is suspended.
	ErrCodeUserSuspended ErrorCode = "user_suspended"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured login-flow error with a code, message,
// and optional cause. It supports error wrapping and unwrapping for use
// with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsDisabled checks if an error is a Disabled error.
func IsDisabled(err error) bool {
	return isCode(err, ErrCodeDisabled)
}

// IsSessionExpired checks if an error is a SessionExpired error.
func IsSessionExpired(err error) bool {
	return isCode(err, ErrCodeSessionExpired)
}

// IsStateMismatch checks if an error is a StateMismatch error.
func IsStateMismatch(err error) bool {
	return isCode(err, ErrCodeStateMismatch)
}

// IsNonceMismatch checks if an error is a NonceMismatch error.
func IsNonceMismatch(err error) bool {
	return isCode(err, ErrCodeNonceMismatch)
}

// IsSubjectMismatch checks if an error is a SubjectMismatch error.
func IsSubjectMismatch(err error) bool {
	return isCode(err, ErrCodeSubjectMismatch)
}

// IsUserNotFound checks if an error is a UserNotFound error.
func IsUserNotFound(err error) bool {
	return isCode(err, ErrCodeUserNotFound)
}

// IsUserSuspended checks if an error is a UserSuspended error.
func IsUserSuspended(err error) bool {
	return isCode(err, ErrCodeUserSuspended)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Category returns the client-safe category string for an error. Errors
// outside the taxonomy collapse to the internal category so that raw
// detail never reaches untrusted clients.
func Category(err error) string {
	if code := GetCode(err); code != "" {
		return string(code)
	}
	return string(ErrCodeInternal)
}
