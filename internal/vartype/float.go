// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import (
	"encoding/json"
	"fmt"
	"math"
)

// floatType accepts any numeric (integers are widened) plus the three
// special value strings. Normalized form is float64.
type floatType struct{}

func (floatType) Validate(raw any) (any, error) {
	if s, ok := raw.(string); ok {
		if f, ok := specialFloat(s); ok {
			return f, nil
		}
		return nil, fmt.Errorf("%w: float expects a number, got string %q", ErrValidation, s)
	}
	f, ok := asFloat(raw)
	if !ok {
		return nil, fmt.Errorf("%w: float expects a number, got %T", ErrValidation, raw)
	}
	return f, nil
}

func (floatType) ValidateConstraints(value any, constraints map[string]any) error {
	f, ok := value.(float64)
	if !ok {
		return fmt.Errorf("%w: float value has kind %T", ErrValidation, value)
	}
	// Special values bypass bounds.
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	if min, ok := constraintFloat(constraints, "min"); ok && f < min {
		return fmt.Errorf("%w: %s below min %s", ErrConstraint, formatFloat(f), formatFloat(min))
	}
	if max, ok := constraintFloat(constraints, "max"); ok && f > max {
		return fmt.Errorf("%w: %s above max %s", ErrConstraint, formatFloat(f), formatFloat(max))
	}
	return nil
}

func (floatType) Serialize(value any) ([]byte, error) {
	f, ok := value.(float64)
	if !ok {
		return nil, fmt.Errorf("%w: float value has kind %T", ErrValidation, value)
	}
	if s, ok := specialFloatString(f); ok {
		return json.Marshal(s)
	}
	return []byte(formatFloat(f)), nil
}

func (t floatType) Deserialize(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return t.Validate(raw)
}
