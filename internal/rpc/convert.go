// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ManuGH/varbridge/internal/codec"
	"github.com/ManuGH/varbridge/internal/rpc/wire"
	"github.com/ManuGH/varbridge/internal/store"
	"github.com/ManuGH/varbridge/internal/vartype"
)

// droppedMetadataKey surfaces sink overflow counts to watch clients.
const droppedMetadataKey = "varbridge.dropped"

// eventMetadataKey marks non-value events (deleted, session_expired).
const eventMetadataKey = "varbridge.event"

// encodeAny renders a normalized native value as a wire AnyValue.
func encodeAny(t vartype.Type, value any) (*wire.AnyValue, error) {
	url, data, err := codec.Encode(t, value)
	if err != nil {
		return nil, err
	}
	return &wire.AnyValue{TypeURL: url, Value: data}, nil
}

// decodeAny parses a wire AnyValue expected to carry the given type.
func decodeAny(t vartype.Type, av *wire.AnyValue) (any, error) {
	if av == nil {
		return nil, fmt.Errorf("%w: missing value", codec.ErrTypeMismatch)
	}
	return codec.Decode(t, av.TypeURL, av.Value)
}

// constraintsFromWire unwraps the constraint map. Constraint values are
// plain JSON rather than typed envelopes: constraint shapes (bounds,
// choice lists, tensor shapes) are not members of the closed type set.
func constraintsFromWire(in map[string]*wire.AnyValue) (map[string]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(in))
	for k, av := range in {
		if av == nil || len(av.Value) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(av.Value, &v); err != nil {
			return nil, store.E(store.KindValidationFailed, "constraint %q is not valid JSON", k)
		}
		out[k] = v
	}
	return out, nil
}

// constraintsToWire is the inverse of constraintsFromWire.
func constraintsToWire(in map[string]any) map[string]*wire.AnyValue {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]*wire.AnyValue, len(in))
	for k, v := range in {
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[k] = &wire.AnyValue{Value: data}
	}
	return out
}

// variableToWire renders a store snapshot as its wire record.
func variableToWire(v store.Variable) (*wire.Variable, error) {
	value, err := encodeAny(v.Type, v.Value)
	if err != nil {
		return nil, err
	}
	return &wire.Variable{
		Id:            v.ID,
		Name:          v.Name,
		Type:          wire.TypeFromTag(v.Type),
		Value:         value,
		Constraints:   constraintsToWire(v.Constraints),
		Metadata:      v.Metadata,
		Version:       int32(v.Version),
		CreatedAt:     v.CreatedAt.Unix(),
		LastUpdatedAt: v.LastUpdatedAt.Unix(),
		Optimizing:    v.Optimizing,
	}, nil
}

// updateToWire renders one observer event as a streamed VariableUpdate.
func updateToWire(u store.Update, dropped uint64) (*wire.VariableUpdate, error) {
	out := &wire.VariableUpdate{
		VariableId: u.VariableID,
		Name:       u.Name,
		Version:    int32(u.Version),
		Timestamp:  u.Timestamp.Unix(),
	}
	md := make(map[string]string, len(u.Metadata)+2)
	for k, v := range u.Metadata {
		md[k] = v
	}
	switch u.Kind {
	case store.UpdateDeleted:
		md[eventMetadataKey] = "deleted"
	case store.UpdateSessionExpired:
		md[eventMetadataKey] = "session_expired"
	}
	if dropped > 0 {
		md[droppedMetadataKey] = strconv.FormatUint(dropped, 10)
	}
	if len(md) > 0 {
		out.Metadata = md
	}
	if u.Kind == store.UpdateSessionExpired {
		return out, nil
	}
	if u.Old != nil {
		old, err := encodeAny(u.Type, u.Old)
		if err != nil {
			return nil, err
		}
		out.OldValue = old
	}
	if u.New != nil {
		nv, err := encodeAny(u.Type, u.New)
		if err != nil {
			return nil, err
		}
		out.NewValue = nv
	}
	return out, nil
}

// errString maps an internal failure to its stable-prefixed wire string.
func errString(err error) string {
	if err == nil {
		return ""
	}
	var se *store.Error
	if errors.As(err, &se) {
		return se.Error()
	}
	if errors.Is(err, codec.ErrTypeMismatch) {
		return string(store.KindTypeMismatch) + ": " + trimPrefix(err.Error(), "type mismatch: ")
	}
	switch {
	case errors.Is(err, vartype.ErrInvalidType):
		return string(store.KindInvalidType) + ": " + trimPrefix(err.Error(), "invalid type: ")
	case errors.Is(err, vartype.ErrConstraint):
		return string(store.KindConstraintViolation) + ": " + trimPrefix(err.Error(), "constraint violated: ")
	case errors.Is(err, vartype.ErrValidation):
		return string(store.KindValidationFailed) + ": " + trimPrefix(err.Error(), "validation failed: ")
	}
	return string(store.KindInternal) + ": " + err.Error()
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}
