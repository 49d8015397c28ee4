package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied is matched by every AccessDeniedError.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidToken is matched by every InvalidTokenError.
	ErrInvalidToken = errors.New("invalid token")
	// ErrDecryption is matched by every DecryptionError.
	ErrDecryption = errors.New("decryption failed")
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports an unknown credential, code or tracker resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AccessDeniedError is returned when a principal queries data it does not own.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string {
	if e.Message == "" {
		return "access denied"
	}
	return e.Message
}

func (e *AccessDeniedError) Is(target error) bool { return target == ErrAccessDenied }

// InvalidTokenError wraps any bearer token verification failure.
type InvalidTokenError struct {
	Reason string
	Err    error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token: %s: %v", e.Reason, e.Err)
	}
	return "invalid token: " + e.Reason
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

func (e *InvalidTokenError) Is(target error) bool { return target == ErrInvalidToken }

// DecryptionError signals a corrupted or tampered ciphertext, or a wrong key.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return "decrypt: " + e.Reason
}

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

// UpstreamError wraps a failed call to the issue tracker.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil && e.Status > 0:
		return fmt.Sprintf("tracker %s: status %d: %v", e.Op, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("tracker %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("tracker %s: status %d", e.Op, e.Status)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }
