// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID  = "session_id"
	FieldVariableID = "variable_id"
	FieldVariable   = "variable"
	FieldObserverID = "observer_id"
	FieldStreamID   = "stream_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldVersion  = "version"
	FieldType     = "type"
	FieldOldValue = "old_value"
	FieldNewValue = "new_value"

	// Network fields
	FieldBindAddress = "bind_address"
	FieldPort        = "port"
)
