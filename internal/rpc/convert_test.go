// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rpc

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/varbridge/internal/codec"
	"github.com/ManuGH/varbridge/internal/rpc/wire"
	"github.com/ManuGH/varbridge/internal/store"
	"github.com/ManuGH/varbridge/internal/vartype"
)

func TestErrStringPrefixes(t *testing.T) {
	tests := []struct {
		err    error
		prefix string
	}{
		{store.E(store.KindNotFound, "variable %q", "x"), "not_found: "},
		{store.E(store.KindSessionExpired, "session %q", "s"), "session_expired: "},
		{store.E(store.KindAlreadyExists, "variable %q", "x"), "already_exists: "},
		{fmt.Errorf("%w: expected float", codec.ErrTypeMismatch), "type_mismatch: "},
		{fmt.Errorf("%w: %q", vartype.ErrInvalidType, "complex"), "invalid_type: "},
		{fmt.Errorf("%w: above max", vartype.ErrConstraint), "constraint_violation: "},
		{fmt.Errorf("%w: not a number", vartype.ErrValidation), "validation_failed: "},
		{fmt.Errorf("disk on fire"), "internal: "},
	}
	for _, tt := range tests {
		got := errString(tt.err)
		assert.Contains(t, got, tt.prefix, "error %v", tt.err)
		assert.Equal(t, tt.prefix, got[:len(tt.prefix)], "prefix must lead the wire string")
	}
	assert.Empty(t, errString(nil))
}

func TestVariableToWireRoundTrip(t *testing.T) {
	now := time.Unix(1750000000, 0)
	v := store.Variable{
		ID:            "var_lr_abc",
		Name:          "lr",
		Type:          vartype.TypeFloat,
		Value:         0.5,
		Constraints:   map[string]any{"min": 0.0, "max": 1.0},
		Metadata:      map[string]string{"origin": "tuner"},
		Version:       3,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Optimizing:    true,
	}

	wv, err := variableToWire(v)
	require.NoError(t, err)
	assert.Equal(t, "var_lr_abc", wv.Id)
	assert.Equal(t, int32(3), wv.Version)
	assert.True(t, wv.Optimizing)

	value, err := decodeAny(vartype.TypeFloat, wv.Value)
	require.NoError(t, err)
	assert.Equal(t, 0.5, value)

	constraints, err := constraintsFromWire(wv.Constraints)
	require.NoError(t, err)
	assert.Equal(t, 0.0, constraints["min"])
	assert.Equal(t, 1.0, constraints["max"])
}

func TestUpdateToWireValue(t *testing.T) {
	u := store.Update{
		Kind:       store.UpdateValue,
		VariableID: "var_x",
		Name:       "x",
		Type:       vartype.TypeInteger,
		Old:        int64(1),
		New:        int64(2),
		Version:    5,
		Timestamp:  time.Unix(1750000000, 0),
	}

	out, err := updateToWire(u, 0)
	require.NoError(t, err)
	assert.Equal(t, "var_x", out.VariableId)
	assert.Equal(t, int32(5), out.Version)
	assert.Empty(t, out.Metadata)

	old, err := decodeAny(vartype.TypeInteger, out.OldValue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), old)
	nv, err := decodeAny(vartype.TypeInteger, out.NewValue)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nv)
}

func TestUpdateToWireDroppedCount(t *testing.T) {
	u := store.Update{
		Kind: store.UpdateValue,
		Type: vartype.TypeInteger,
		New:  int64(1),
	}
	out, err := updateToWire(u, 7)
	require.NoError(t, err)
	assert.Equal(t, "7", out.Metadata[droppedMetadataKey])
}

func TestUpdateToWireDeleted(t *testing.T) {
	u := store.Update{
		Kind: store.UpdateDeleted,
		Type: vartype.TypeInteger,
		Old:  int64(9),
	}
	out, err := updateToWire(u, 0)
	require.NoError(t, err)
	assert.Equal(t, "deleted", out.Metadata[eventMetadataKey])
	assert.Nil(t, out.NewValue)
	require.NotNil(t, out.OldValue)
}

func TestUpdateToWireSessionExpired(t *testing.T) {
	u := store.Update{
		Kind:      store.UpdateSessionExpired,
		SessionID: "sess-1",
		Timestamp: time.Unix(1750000000, 0),
	}
	out, err := updateToWire(u, 3)
	require.NoError(t, err)
	assert.Equal(t, "session_expired", out.Metadata[eventMetadataKey])
	assert.Equal(t, "3", out.Metadata[droppedMetadataKey])
	assert.Empty(t, out.VariableId)
	assert.Nil(t, out.OldValue)
	assert.Nil(t, out.NewValue)
}

func TestConstraintsFromWireRejectsGarbage(t *testing.T) {
	_, err := constraintsFromWire(map[string]*wire.AnyValue{"min": {Value: []byte("{")}})
	require.Error(t, err)
	assert.True(t, store.IsKind(err, store.KindValidationFailed))
}
