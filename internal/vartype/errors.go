// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import "errors"

var (
	// ErrInvalidType is returned for a tag outside the closed type set.
	ErrInvalidType = errors.New("invalid type")

	// ErrValidation is returned when a raw value does not conform to its type.
	ErrValidation = errors.New("validation failed")

	// ErrConstraint is returned when a normalized value violates a constraint.
	ErrConstraint = errors.New("constraint violated")
)
