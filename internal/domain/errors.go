package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not_found")
	ErrUsernameTaken         = errors.New("username_taken")
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrExternalAccountExists = errors.New("external_account_exists")
	ErrValidation            = errors.New("validation")
	ErrMalformedImport       = errors.New("malformed_import")
	ErrStoreUnavailable      = errors.New("store_unavailable")
)

type ValidationError struct {
	Fields map[string]string
	// Cause, when set, is matched by errors.Is in addition to ErrValidation.
	Cause error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrValidation, e.Cause}
	}
	return []error{ErrValidation}
}

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// StoreError marks a backing-store failure. The caller's local state is
// unchanged and the action may be retried.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// IsDomainError reports whether err already carries a domain classification
// that callers render specifically.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrUnauthorized, ErrForbidden, ErrNotFound, ErrUsernameTaken,
		ErrInvalidCredentials, ErrExternalAccountExists, ErrValidation,
		ErrMalformedImport, ErrStoreUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
