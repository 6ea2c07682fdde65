// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import (
	"encoding/json"
	"fmt"
	"strings"
)

// booleanType accepts true/false, the texts "true"/"false"
// (case-insensitive) and the numbers 1/0. No constraints.
type booleanType struct{}

func (booleanType) Validate(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: boolean expects true/false, got %q", ErrValidation, v)
	}
	if i, ok := asInt(raw); ok {
		switch i {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	}
	return nil, fmt.Errorf("%w: boolean expects true/false, got %v (%T)", ErrValidation, raw, raw)
}

func (booleanType) ValidateConstraints(value any, constraints map[string]any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%w: boolean value has kind %T", ErrValidation, value)
	}
	return nil
}

func (booleanType) Serialize(value any) ([]byte, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: boolean value has kind %T", ErrValidation, value)
	}
	return json.Marshal(b)
}

func (t booleanType) Deserialize(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return t.Validate(raw)
}
