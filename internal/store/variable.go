// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/varbridge/internal/vartype"
)

// Variable is a named, typed, versioned, constraint-checked cell within
// a session. Values handed out by the store are snapshots; mutations go
// through the store's operations only.
type Variable struct {
	ID            string
	Name          string
	Type          vartype.Type
	Value         any
	Constraints   map[string]any
	Metadata      map[string]string
	Version       int64
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	Optimizing    bool
}

// newVariableID allocates a stable opaque id of the form
// var_<name>_<unique>. The uuid suffix keeps ids unique for the store's
// lifetime even when names are reused across sessions.
func newVariableID(name string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "var_" + name + "_" + suffix
}

// snapshot returns a caller-safe copy with cloned maps.
func (v *Variable) snapshot() Variable {
	out := *v
	if v.Constraints != nil {
		out.Constraints = make(map[string]any, len(v.Constraints))
		for k, c := range v.Constraints {
			out.Constraints[k] = c
		}
	}
	if v.Metadata != nil {
		out.Metadata = make(map[string]string, len(v.Metadata))
		for k, m := range v.Metadata {
			out.Metadata[k] = m
		}
	}
	return out
}

// mergeMetadata overlays new keys onto the variable's metadata map.
func (v *Variable) mergeMetadata(md map[string]string) {
	if len(md) == 0 {
		return
	}
	if v.Metadata == nil {
		v.Metadata = make(map[string]string, len(md))
	}
	for k, val := range md {
		v.Metadata[k] = val
	}
}
