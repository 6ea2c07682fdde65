// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"errors"
	"fmt"
)

// Kind classifies store failures. The string form doubles as the stable
// wire prefix, so renaming a kind is a protocol change.
type Kind string

const (
	KindInvalidType         Kind = "invalid_type"
	KindTypeMismatch        Kind = "type_mismatch"
	KindValidationFailed    Kind = "validation_failed"
	KindConstraintViolation Kind = "constraint_violation"
	KindNotFound            Kind = "not_found"
	KindSessionNotFound     Kind = "session_not_found"
	KindSessionExpired      Kind = "session_expired"
	KindAlreadyExists       Kind = "already_exists"
	KindPartialFailure      Kind = "partial_failure"
	KindTransport           Kind = "transport"
	KindInternal            Kind = "internal"
)

// Error is a typed store failure. Validation and lookup failures are
// never fatal: they are returned to the caller and leave state unchanged.
type Error struct {
	Kind Kind
	Msg  string
	// Details carries per-key reasons for batch failures.
	Details map[string]string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// E builds a typed error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from an error chain, or KindInternal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
