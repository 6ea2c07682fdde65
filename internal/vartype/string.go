// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// stringType accepts text. Values that can name themselves (fmt.Stringer)
// are coerced to text; nil is rejected.
type stringType struct{}

func (stringType) Validate(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("%w: string value must not be null", ErrValidation)
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return nil, fmt.Errorf("%w: string expects text, got %T", ErrValidation, raw)
}

func (stringType) ValidateConstraints(value any, constraints map[string]any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: string value has kind %T", ErrValidation, value)
	}
	return checkStringConstraints(s, constraints)
}

// checkStringConstraints enforces min_length, max_length, pattern and enum.
// Shared with choice and module, which layer extra rules on top.
func checkStringConstraints(s string, constraints map[string]any) error {
	if min, ok := constraintInt(constraints, "min_length"); ok && int64(len(s)) < min {
		return fmt.Errorf("%w: length %d below min_length %d", ErrConstraint, len(s), min)
	}
	if max, ok := constraintInt(constraints, "max_length"); ok && int64(len(s)) > max {
		return fmt.Errorf("%w: length %d above max_length %d", ErrConstraint, len(s), max)
	}
	if pat, ok := constraints["pattern"].(string); ok && pat != "" {
		if err := checkPattern(s, pat); err != nil {
			return err
		}
	}
	if enum, ok := constraintStrings(constraints, "enum"); ok {
		if !containsString(enum, s) {
			return fmt.Errorf("%w: %q not in enum", ErrConstraint, s)
		}
	}
	return nil
}

// checkPattern matches s against pat. An uncompilable pattern falls back
// to a literal (escaped) match rather than failing the update.
func checkPattern(s, pat string) error {
	re, err := regexp.Compile(pat)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(pat))
	}
	if !re.MatchString(s) {
		return fmt.Errorf("%w: %q does not match pattern %q", ErrConstraint, s, pat)
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (stringType) Serialize(value any) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: string value has kind %T", ErrValidation, value)
	}
	return json.Marshal(s)
}

func (t stringType) Deserialize(data []byte) (any, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s, nil
}
