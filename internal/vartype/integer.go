// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// integerType accepts integers and finite floats with a zero fractional
// part. Truncation is rejected. Normalized form is int64.
type integerType struct{}

func (integerType) Validate(raw any) (any, error) {
	i, ok := asInt(raw)
	if !ok {
		return nil, fmt.Errorf("%w: integer expects a whole number, got %v (%T)", ErrValidation, raw, raw)
	}
	return i, nil
}

func (integerType) ValidateConstraints(value any, constraints map[string]any) error {
	i, ok := value.(int64)
	if !ok {
		return fmt.Errorf("%w: integer value has kind %T", ErrValidation, value)
	}
	if min, ok := constraintInt(constraints, "min"); ok && i < min {
		return fmt.Errorf("%w: %d below min %d", ErrConstraint, i, min)
	}
	if max, ok := constraintInt(constraints, "max"); ok && i > max {
		return fmt.Errorf("%w: %d above max %d", ErrConstraint, i, max)
	}
	return nil
}

func (integerType) Serialize(value any) ([]byte, error) {
	i, ok := value.(int64)
	if !ok {
		return nil, fmt.Errorf("%w: integer value has kind %T", ErrValidation, value)
	}
	return []byte(strconv.FormatInt(i, 10)), nil
}

func (t integerType) Deserialize(data []byte) (any, error) {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return t.Validate(n)
}
