// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupClosedSet(t *testing.T) {
	for _, typ := range Types() {
		h, err := Lookup(typ)
		require.NoError(t, err)
		require.NotNil(t, h)
	}

	_, err := Lookup(Type("complex"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidType)
	assert.False(t, IsValidType(Type("complex")))
}

func TestFloatValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    float64
		wantErr bool
	}{
		{name: "float64", raw: 0.5, want: 0.5},
		{name: "integer widened", raw: 3, want: 3.0},
		{name: "int64 widened", raw: int64(-7), want: -7.0},
		{name: "positive infinity", raw: "Infinity", want: math.Inf(1)},
		{name: "negative infinity", raw: "-Infinity", want: math.Inf(-1)},
		{name: "plain string rejected", raw: "fast", wantErr: true},
		{name: "bool rejected", raw: true, wantErr: true},
		{name: "nil rejected", raw: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(TypeFloat, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFloatNaN(t *testing.T) {
	got, err := Validate(TypeFloat, "NaN")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.(float64)))
}

func TestFloatConstraints(t *testing.T) {
	c := map[string]any{"min": 0.0, "max": 1.0}

	require.NoError(t, ValidateConstraints(TypeFloat, 0.5, c))

	err := ValidateConstraints(TypeFloat, 1.5, c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraint)

	err = ValidateConstraints(TypeFloat, -0.1, c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraint)

	// Special values bypass bounds.
	assert.NoError(t, ValidateConstraints(TypeFloat, math.Inf(1), c))
	assert.NoError(t, ValidateConstraints(TypeFloat, math.NaN(), c))
}

func TestFloatSerializeSpecials(t *testing.T) {
	data, err := Serialize(TypeFloat, math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, `"Infinity"`, string(data))

	data, err = Serialize(TypeFloat, math.Inf(-1))
	require.NoError(t, err)
	assert.Equal(t, `"-Infinity"`, string(data))

	data, err = Serialize(TypeFloat, math.NaN())
	require.NoError(t, err)
	assert.Equal(t, `"NaN"`, string(data))

	got, err := Deserialize(TypeFloat, []byte(`"Infinity"`))
	require.NoError(t, err)
	assert.True(t, math.IsInf(got.(float64), 1))
}

func TestIntegerValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    int64
		wantErr bool
	}{
		{name: "int", raw: 5, want: 5},
		{name: "int64", raw: int64(-9), want: -9},
		{name: "whole float accepted", raw: 4.0, want: 4},
		{name: "fractional float rejected", raw: 4.5, wantErr: true},
		{name: "infinity rejected", raw: math.Inf(1), wantErr: true},
		{name: "nan rejected", raw: math.NaN(), wantErr: true},
		{name: "string rejected", raw: "5", wantErr: true},
		{name: "uint64 overflow rejected", raw: uint64(math.MaxUint64), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(TypeInteger, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntegerConstraints(t *testing.T) {
	c := map[string]any{"min": 1, "max": 10}
	require.NoError(t, ValidateConstraints(TypeInteger, int64(5), c))
	assert.ErrorIs(t, ValidateConstraints(TypeInteger, int64(0), c), ErrConstraint)
	assert.ErrorIs(t, ValidateConstraints(TypeInteger, int64(11), c), ErrConstraint)
}

func TestStringValidate(t *testing.T) {
	got, err := Validate(TypeString, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = Validate(TypeString, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Validate(TypeString, 42)
	assert.ErrorIs(t, err, ErrValidation)
}

type named struct{}

func (named) String() string { return "named" }

func TestStringStringerCoercion(t *testing.T) {
	got, err := Validate(TypeString, named{})
	require.NoError(t, err)
	assert.Equal(t, "named", got)
}

func TestStringConstraints(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		constraints map[string]any
		wantErr     bool
	}{
		{name: "within lengths", value: "abc", constraints: map[string]any{"min_length": 2, "max_length": 5}},
		{name: "too short", value: "a", constraints: map[string]any{"min_length": 2}, wantErr: true},
		{name: "too long", value: "abcdef", constraints: map[string]any{"max_length": 5}, wantErr: true},
		{name: "pattern match", value: "run-42", constraints: map[string]any{"pattern": `^run-\d+$`}},
		{name: "pattern mismatch", value: "run-x", constraints: map[string]any{"pattern": `^run-\d+$`}, wantErr: true},
		{name: "enum member", value: "adam", constraints: map[string]any{"enum": []any{"adam", "sgd"}}},
		{name: "enum outsider", value: "rmsprop", constraints: map[string]any{"enum": []any{"adam", "sgd"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConstraints(TypeString, tt.value, tt.constraints)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConstraint)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPatternCompileFallback(t *testing.T) {
	// Uncompilable pattern degrades to a literal match.
	c := map[string]any{"pattern": "a[b"}
	assert.NoError(t, ValidateConstraints(TypeString, "a[b", c))
	assert.ErrorIs(t, ValidateConstraints(TypeString, "ab", c), ErrConstraint)
}

func TestBooleanValidate(t *testing.T) {
	tests := []struct {
		raw     any
		want    bool
		wantErr bool
	}{
		{raw: true, want: true},
		{raw: false, want: false},
		{raw: "true", want: true},
		{raw: "FALSE", want: false},
		{raw: 1, want: true},
		{raw: 0, want: false},
		{raw: 2, wantErr: true},
		{raw: "yes", wantErr: true},
		{raw: nil, wantErr: true},
	}
	for _, tt := range tests {
		got, err := Validate(TypeBoolean, tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrValidation, "raw=%v", tt.raw)
			continue
		}
		require.NoError(t, err, "raw=%v", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%v", tt.raw)
	}
}

func TestChoiceConstraints(t *testing.T) {
	c := map[string]any{"choices": []any{"low", "high"}}
	require.NoError(t, ValidateConstraints(TypeChoice, "low", c))
	assert.ErrorIs(t, ValidateConstraints(TypeChoice, "medium", c), ErrConstraint)

	// Without a choices constraint anything passes the choice rule.
	assert.NoError(t, ValidateConstraints(TypeChoice, "anything", nil))
}

func TestModuleConstraints(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		constraints map[string]any
		wantErr     bool
	}{
		{name: "in namespace", value: "model.layers.0", constraints: map[string]any{"namespace": "model."}},
		{name: "outside namespace", value: "optimizer.lr", constraints: map[string]any{"namespace": "model."}, wantErr: true},
		{name: "in choices", value: "encoder", constraints: map[string]any{"choices": []any{"encoder", "decoder"}}},
		{name: "pattern", value: "layer_3", constraints: map[string]any{"pattern": `^layer_\d+$`}},
		{name: "pattern mismatch", value: "layer_x", constraints: map[string]any{"pattern": `^layer_\d+$`}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConstraints(TypeModule, tt.value, tt.constraints)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConstraint)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEmbeddingValidate(t *testing.T) {
	got, err := Validate(TypeEmbedding, []any{1, 2.5, float32(3)})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3}, got)

	_, err = Validate(TypeEmbedding, []any{1, "two"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Validate(TypeEmbedding, "not a list")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEmbeddingDimension(t *testing.T) {
	c := map[string]any{"dimension": 3}
	require.NoError(t, ValidateConstraints(TypeEmbedding, []float64{1, 2, 3}, c))
	assert.ErrorIs(t, ValidateConstraints(TypeEmbedding, []float64{1, 2}, c), ErrConstraint)
}

func TestTensorValidate(t *testing.T) {
	got, err := Validate(TypeTensor, []any{[]any{1, 2}, []any{3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{1.0, 2.0}, []any{3.0, 4.0}}, got)

	// A bare scalar is a rank-0 tensor.
	got, err = Validate(TypeTensor, 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)

	_, err = Validate(TypeTensor, []any{[]any{1}, "row"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTensorDepthLimit(t *testing.T) {
	deep := any(1.0)
	for i := 0; i < 40; i++ {
		deep = []any{deep}
	}
	_, err := Validate(TypeTensor, deep)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTensorShapeConstraint(t *testing.T) {
	value, err := Validate(TypeTensor, []any{[]any{1, 2, 3}, []any{4, 5, 6}})
	require.NoError(t, err)

	require.NoError(t, ValidateConstraints(TypeTensor, value, map[string]any{"shape": []any{2, 3}}))
	assert.ErrorIs(t, ValidateConstraints(TypeTensor, value, map[string]any{"shape": []any{3, 2}}), ErrConstraint)
	assert.ErrorIs(t, ValidateConstraints(TypeTensor, value, map[string]any{"shape": []any{2}}), ErrConstraint)
}

func TestTensorDtypeConstraint(t *testing.T) {
	ints, err := Validate(TypeTensor, []any{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, ValidateConstraints(TypeTensor, ints, map[string]any{"dtype": "int"}))

	floats, err := Validate(TypeTensor, []any{1.5, 2})
	require.NoError(t, err)
	assert.ErrorIs(t, ValidateConstraints(TypeTensor, floats, map[string]any{"dtype": "int"}), ErrConstraint)
	assert.NoError(t, ValidateConstraints(TypeTensor, floats, map[string]any{"dtype": "float"}))

	assert.ErrorIs(t, ValidateConstraints(TypeTensor, ints, map[string]any{"dtype": "complex"}), ErrConstraint)
}

func TestValidPredicate(t *testing.T) {
	assert.True(t, Valid(0.5, TypeFloat, map[string]any{"min": 0.0, "max": 1.0}))
	assert.False(t, Valid(1.5, TypeFloat, map[string]any{"min": 0.0, "max": 1.0}))
	assert.False(t, Valid("text", TypeFloat, nil))
}

func TestSerializeRoundTrip(t *testing.T) {
	// One representative value per type; proves canonical payloads parse
	// back to the same normalized form.
	cases := []struct {
		typ   Type
		value any
	}{
		{TypeFloat, 0.25},
		{TypeInteger, int64(-3)},
		{TypeString, "hello"},
		{TypeBoolean, true},
		{TypeChoice, "adam"},
		{TypeModule, "model.encoder"},
		{TypeEmbedding, []float64{0.1, 0.2}},
		{TypeTensor, []any{[]any{1.0, 2.0}}},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			data, err := Serialize(tc.typ, tc.value)
			require.NoError(t, err)
			got, err := Deserialize(tc.typ, data)
			require.NoError(t, err)
			assert.Equal(t, tc.value, got)
		})
	}
}
