// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import (
	"encoding/json"
	"fmt"
)

// choiceType is a string that must appear in the "choices" constraint.
// String rules apply otherwise.
type choiceType struct{}

func (choiceType) Validate(raw any) (any, error) {
	return stringType{}.Validate(raw)
}

func (choiceType) ValidateConstraints(value any, constraints map[string]any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: choice value has kind %T", ErrValidation, value)
	}
	if choices, ok := constraintStrings(constraints, "choices"); ok {
		if !containsString(choices, s) {
			return fmt.Errorf("%w: %q not in choices", ErrConstraint, s)
		}
	}
	return checkStringConstraints(s, constraints)
}

func (choiceType) Serialize(value any) ([]byte, error) {
	return stringType{}.Serialize(value)
}

func (choiceType) Deserialize(data []byte) (any, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s, nil
}
