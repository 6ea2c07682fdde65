// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import (
	"encoding/json"
	"fmt"
)

// embeddingType is an ordered sequence of floats. Constraint:
// dimension (exact length).
type embeddingType struct{}

func (embeddingType) Validate(raw any) (any, error) {
	switch vs := raw.(type) {
	case []float64:
		out := make([]float64, len(vs))
		copy(out, vs)
		return out, nil
	case []float32:
		out := make([]float64, len(vs))
		for i, v := range vs {
			out[i] = float64(v)
		}
		return out, nil
	case []int:
		out := make([]float64, len(vs))
		for i, v := range vs {
			out[i] = float64(v)
		}
		return out, nil
	case []any:
		out := make([]float64, len(vs))
		for i, v := range vs {
			f, ok := asFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: embedding element %d is not a number (%T)", ErrValidation, i, v)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: embedding expects a sequence of numbers, got %T", ErrValidation, raw)
}

func (embeddingType) ValidateConstraints(value any, constraints map[string]any) error {
	vs, ok := value.([]float64)
	if !ok {
		return fmt.Errorf("%w: embedding value has kind %T", ErrValidation, value)
	}
	if dim, ok := constraintInt(constraints, "dimension"); ok && int64(len(vs)) != dim {
		return fmt.Errorf("%w: dimension %d, want %d", ErrConstraint, len(vs), dim)
	}
	return nil
}

func (embeddingType) Serialize(value any) ([]byte, error) {
	vs, ok := value.([]float64)
	if !ok {
		return nil, fmt.Errorf("%w: embedding value has kind %T", ErrValidation, value)
	}
	return json.Marshal(vs)
}

func (t embeddingType) Deserialize(data []byte) (any, error) {
	var vs []float64
	if err := json.Unmarshal(data, &vs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if vs == nil {
		vs = []float64{}
	}
	return vs, nil
}
