// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import (
	"encoding/json"
	"fmt"
	"strings"
)

// moduleType is a string naming a component. Constraints: choices,
// namespace (prefix) and pattern.
type moduleType struct{}

func (moduleType) Validate(raw any) (any, error) {
	return stringType{}.Validate(raw)
}

func (moduleType) ValidateConstraints(value any, constraints map[string]any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: module value has kind %T", ErrValidation, value)
	}
	if choices, ok := constraintStrings(constraints, "choices"); ok {
		if !containsString(choices, s) {
			return fmt.Errorf("%w: %q not in choices", ErrConstraint, s)
		}
	}
	if ns, ok := constraints["namespace"].(string); ok && ns != "" {
		if !strings.HasPrefix(s, ns) {
			return fmt.Errorf("%w: %q outside namespace %q", ErrConstraint, s, ns)
		}
	}
	if pat, ok := constraints["pattern"].(string); ok && pat != "" {
		if err := checkPattern(s, pat); err != nil {
			return err
		}
	}
	return nil
}

func (moduleType) Serialize(value any) ([]byte, error) {
	return stringType{}.Serialize(value)
}

func (moduleType) Deserialize(data []byte) (any, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s, nil
}
