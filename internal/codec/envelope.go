// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package codec implements the canonical wire envelope for
// dynamically-typed values: a type tag plus a JSON payload, wrapped in
// the protocol's generic any-message with a redundant type_url used for
// fast rejection. The codec performs no constraint checks.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/varbridge/internal/vartype"
)

// ErrTypeMismatch is returned when a payload's tag disagrees with the
// expected type.
var ErrTypeMismatch = errors.New("type mismatch")

// typeURLPrefix is the authority under which envelope tags are
// namespaced. The last path segment always repeats the tag.
const typeURLPrefix = "type.varbridge.io/varbridge.v1."

// envelope is the two-field JSON form every value takes on the wire.
type envelope struct {
	Type  vartype.Type    `json:"type"`
	Value json.RawMessage `json:"value"`
}

// TypeURL returns the type_url for a tag.
func TypeURL(t vartype.Type) string {
	return typeURLPrefix + string(t)
}

// TagFromURL extracts the tag from a type_url's last path segment.
func TagFromURL(url string) vartype.Type {
	if i := strings.LastIndexByte(url, '.'); i >= 0 {
		return vartype.Type(url[i+1:])
	}
	return vartype.Type(url)
}

// Encode renders a normalized native value as (type_url, envelope bytes).
func Encode(t vartype.Type, value any) (string, []byte, error) {
	payload, err := vartype.Serialize(t, value)
	if err != nil {
		return "", nil, err
	}
	raw, err := json.Marshal(envelope{Type: t, Value: payload})
	if err != nil {
		return "", nil, fmt.Errorf("encode envelope: %w", err)
	}
	return TypeURL(t), raw, nil
}

// Decode parses an envelope expected to carry the given type. The
// type_url's last segment is checked first so mismatched payloads are
// rejected without parsing the body.
func Decode(expected vartype.Type, typeURL string, data []byte) (any, error) {
	if typeURL != "" {
		if tag := TagFromURL(typeURL); tag != expected {
			return nil, fmt.Errorf("%w: expected %s, type_url says %s", ErrTypeMismatch, expected, tag)
		}
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != expected {
		return nil, fmt.Errorf("%w: expected %s, payload says %s", ErrTypeMismatch, expected, env.Type)
	}
	return vartype.Deserialize(expected, env.Value)
}

// DecodeAny parses an envelope using the tag it carries, for callers
// that do not know the type up front (e.g. register requests).
func DecodeAny(typeURL string, data []byte) (vartype.Type, any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !vartype.IsValidType(env.Type) {
		return "", nil, fmt.Errorf("%w: %q", vartype.ErrInvalidType, string(env.Type))
	}
	if typeURL != "" {
		if tag := TagFromURL(typeURL); tag != env.Type {
			return "", nil, fmt.Errorf("%w: type_url says %s, payload says %s", ErrTypeMismatch, tag, env.Type)
		}
	}
	v, err := vartype.Deserialize(env.Type, env.Value)
	if err != nil {
		return "", nil, err
	}
	return env.Type, v, nil
}
