// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package vartype implements the closed set of variable types shared
// across the wire: validation, constraint checking and canonical
// serialization. All validate functions are pure and normalization is
// deterministic, so both sides of the bridge agree on stored values.
package vartype

import (
	"fmt"
)

// Type identifies one of the closed set of variable types.
type Type string

const (
	TypeFloat     Type = "float"
	TypeInteger   Type = "integer"
	TypeString    Type = "string"
	TypeBoolean   Type = "boolean"
	TypeChoice    Type = "choice"
	TypeModule    Type = "module"
	TypeEmbedding Type = "embedding"
	TypeTensor    Type = "tensor"
)

// Handler is the per-type contract: validate raw input into normalized
// form, enforce type-specific constraints, and convert to/from the
// canonical JSON payload.
type Handler interface {
	// Validate normalizes a raw value or rejects it.
	Validate(raw any) (any, error)
	// ValidateConstraints checks a normalized value against a constraint map.
	ValidateConstraints(value any, constraints map[string]any) error
	// Serialize renders a normalized value as its canonical JSON payload.
	Serialize(value any) ([]byte, error)
	// Deserialize parses a canonical JSON payload into a normalized value.
	Deserialize(data []byte) (any, error)
}

var registry = map[Type]Handler{
	TypeFloat:     floatType{},
	TypeInteger:   integerType{},
	TypeString:    stringType{},
	TypeBoolean:   booleanType{},
	TypeChoice:    choiceType{},
	TypeModule:    moduleType{},
	TypeEmbedding: embeddingType{},
	TypeTensor:    tensorType{},
}

// Lookup returns the handler for a type tag.
func Lookup(t Type) (Handler, error) {
	h, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}
	return h, nil
}

// IsValidType reports whether the tag names a registered type.
func IsValidType(t Type) bool {
	_, ok := registry[t]
	return ok
}

// Types returns all registered type tags.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}

// Validate normalizes raw against the given type.
func Validate(t Type, raw any) (any, error) {
	h, err := Lookup(t)
	if err != nil {
		return nil, err
	}
	return h.Validate(raw)
}

// ValidateConstraints checks value against the given type's constraint rules.
func ValidateConstraints(t Type, value any, constraints map[string]any) error {
	h, err := Lookup(t)
	if err != nil {
		return err
	}
	return h.ValidateConstraints(value, constraints)
}

// Serialize renders value as the canonical JSON payload for the given type.
func Serialize(t Type, value any) ([]byte, error) {
	h, err := Lookup(t)
	if err != nil {
		return nil, err
	}
	return h.Serialize(value)
}

// Deserialize parses the canonical JSON payload for the given type.
func Deserialize(t Type, data []byte) (any, error) {
	h, err := Lookup(t)
	if err != nil {
		return nil, err
	}
	return h.Deserialize(data)
}

// Valid is the derived predicate: raw validates and, normalized,
// satisfies the constraints.
func Valid(raw any, t Type, constraints map[string]any) bool {
	v, err := Validate(t, raw)
	if err != nil {
		return false
	}
	return ValidateConstraints(t, v, constraints) == nil
}
