package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes lifecycle failure semantics across the backend.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeTypeMismatch       ErrorCode = "type_mismatch"
	CodeNotReady           ErrorCode = "not_ready"
	CodeConflict           ErrorCode = "conflict"
	CodeAllProvidersFailed ErrorCode = "all_providers_failed"
	CodeSyncFailed         ErrorCode = "sync_failed"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"
)

// Error is the canonical error wrapper returned to callers. Raw transport
// errors never cross the service boundary without being wrapped here.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error

	// MissingFields is populated for CodeNotReady.
	MissingFields []string
	// ExistingIDs is populated for CodeConflict raised by duplicate detection.
	ExistingIDs []string
	// PerProvider is populated for CodeAllProvidersFailed, keyed by provider name.
	PerProvider map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a domain error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with domain error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// NotReady reports a refused transition together with the fields still missing.
func NotReady(op string, missing []string) error {
	return &Error{
		Code:          CodeNotReady,
		Op:            strings.TrimSpace(op),
		Message:       fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
		MissingFields: missing,
	}
}

// Duplicate reports probable duplicates found before a create.
func Duplicate(op string, existingIDs []string) error {
	return &Error{
		Code:        CodeConflict,
		Op:          strings.TrimSpace(op),
		Message:     fmt.Sprintf("possible duplicates: %s", strings.Join(existingIDs, ", ")),
		ExistingIDs: existingIDs,
	}
}

// AllProvidersFailed aggregates one error per attempted provider.
func AllProvidersFailed(op string, perProvider map[string]string) error {
	names := make([]string, 0, len(perProvider))
	for name := range perProvider {
		names = append(names, name)
	}
	return &Error{
		Code:        CodeAllProvidersFailed,
		Op:          strings.TrimSpace(op),
		Message:     fmt.Sprintf("all configured providers failed: %s", strings.Join(names, ", ")),
		PerProvider: perProvider,
	}
}

// IsCode checks whether err (or wrapped err) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// CodeOf extracts the domain error code when available.
func CodeOf(err error) ErrorCode {
	var de *Error
	if !errors.As(err, &de) {
		return ""
	}
	return de.Code
}

// AsError returns the wrapped *Error when present.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return nil
}
