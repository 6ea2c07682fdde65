// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import (
	"encoding/json"
	"fmt"
	"math"
)

// tensorType is a nested numeric array. Constraints: shape (ordered
// dimensions, matched recursively) and dtype. Normalized form is nested
// []any with float64 leaves.
type tensorType struct{}

func (t tensorType) Validate(raw any) (any, error) {
	norm, err := normalizeTensor(raw, 0)
	if err != nil {
		return nil, err
	}
	return norm, nil
}

const maxTensorDepth = 32

func normalizeTensor(raw any, depth int) (any, error) {
	if depth > maxTensorDepth {
		return nil, fmt.Errorf("%w: tensor nesting exceeds %d levels", ErrValidation, maxTensorDepth)
	}
	if f, ok := asFloat(raw); ok {
		return f, nil
	}
	switch vs := raw.(type) {
	case []float64:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out, nil
	case []int:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = float64(v)
		}
		return out, nil
	case []any:
		out := make([]any, len(vs))
		for i, v := range vs {
			n, err := normalizeTensor(v, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: tensor expects nested numeric arrays, got %T", ErrValidation, raw)
}

func (t tensorType) ValidateConstraints(value any, constraints map[string]any) error {
	if shapeRaw, ok := constraints["shape"]; ok && shapeRaw != nil {
		shape, err := tensorShapeConstraint(shapeRaw)
		if err != nil {
			return err
		}
		if err := checkTensorShape(value, shape); err != nil {
			return err
		}
	}
	if dtype, ok := constraints["dtype"].(string); ok && dtype != "" {
		if err := checkTensorDtype(value, dtype); err != nil {
			return err
		}
	}
	return nil
}

func tensorShapeConstraint(raw any) ([]int64, error) {
	switch vs := raw.(type) {
	case []int:
		out := make([]int64, len(vs))
		for i, v := range vs {
			out[i] = int64(v)
		}
		return out, nil
	case []int64:
		return vs, nil
	case []any:
		out := make([]int64, len(vs))
		for i, v := range vs {
			n, ok := asInt(v)
			if !ok {
				return nil, fmt.Errorf("%w: shape dimension %d is not an integer", ErrConstraint, i)
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: shape constraint has kind %T", ErrConstraint, raw)
}

func checkTensorShape(value any, shape []int64) error {
	if len(shape) == 0 {
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("%w: expected scalar at innermost dimension, got %T", ErrConstraint, value)
		}
		return nil
	}
	vs, ok := value.([]any)
	if !ok {
		return fmt.Errorf("%w: expected array of length %d, got %T", ErrConstraint, shape[0], value)
	}
	if int64(len(vs)) != shape[0] {
		return fmt.Errorf("%w: dimension length %d, want %d", ErrConstraint, len(vs), shape[0])
	}
	for _, v := range vs {
		if err := checkTensorShape(v, shape[1:]); err != nil {
			return err
		}
	}
	return nil
}

func checkTensorDtype(value any, dtype string) error {
	switch dtype {
	case "float", "float32", "float64":
		return nil
	case "int", "integer", "int32", "int64":
		return eachTensorLeaf(value, func(f float64) error {
			if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
				return fmt.Errorf("%w: leaf %s is not an integer (dtype %s)", ErrConstraint, formatFloat(f), dtype)
			}
			return nil
		})
	}
	return fmt.Errorf("%w: unknown dtype %q", ErrConstraint, dtype)
}

func eachTensorLeaf(value any, fn func(float64) error) error {
	switch v := value.(type) {
	case float64:
		return fn(v)
	case []any:
		for _, e := range v {
			if err := eachTensorLeaf(e, fn); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unexpected tensor node %T", ErrValidation, value)
}

func (t tensorType) Serialize(value any) ([]byte, error) {
	// Normalized tensors contain only []any and float64, which marshal cleanly.
	return json.Marshal(value)
}

func (t tensorType) Deserialize(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return t.Validate(raw)
}
