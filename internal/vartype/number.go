// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vartype

import (
	"encoding/json"
	"math"
	"strconv"
)

// asFloat widens any Go numeric (or json.Number) to float64.
func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// asInt converts any Go numeric to int64 without truncation.
// Finite floats with a zero fractional part are accepted.
func asInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case float32:
		return asInt(float64(v))
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		if f, err := v.Float64(); err == nil {
			return asInt(f)
		}
		return 0, false
	}
	return 0, false
}

// specialFloat maps the protocol's special value strings to float64.
func specialFloat(s string) (float64, bool) {
	switch s {
	case "Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	case "NaN":
		return math.NaN(), true
	}
	return 0, false
}

// specialFloatString is the inverse of specialFloat.
func specialFloatString(f float64) (string, bool) {
	switch {
	case math.IsInf(f, 1):
		return "Infinity", true
	case math.IsInf(f, -1):
		return "-Infinity", true
	case math.IsNaN(f):
		return "NaN", true
	}
	return "", false
}

// formatFloat renders the shortest exact decimal representation.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// constraintFloat reads a numeric constraint entry.
func constraintFloat(constraints map[string]any, key string) (float64, bool) {
	raw, ok := constraints[key]
	if !ok || raw == nil {
		return 0, false
	}
	return asFloat(raw)
}

// constraintInt reads an integer constraint entry.
func constraintInt(constraints map[string]any, key string) (int64, bool) {
	raw, ok := constraints[key]
	if !ok || raw == nil {
		return 0, false
	}
	return asInt(raw)
}

// constraintStrings reads a string-list constraint entry (e.g. enum, choices).
func constraintStrings(constraints map[string]any, key string) ([]string, bool) {
	raw, ok := constraints[key]
	if !ok || raw == nil {
		return nil, false
	}
	switch vs := raw.(type) {
	case []string:
		return vs, true
	case []any:
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			s, ok := v.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
