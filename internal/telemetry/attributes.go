// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// RPC attributes
	RPCMethodKey  = "rpc.method"
	RPCServiceKey = "rpc.service"

	// Session attributes
	SessionIDKey  = "session.id"
	SessionTTLKey = "session.ttl_seconds"

	// Variable attributes
	VariableIDKey         = "variable.id"
	VariableNameKey       = "variable.name"
	VariableTypeKey       = "variable.type"
	VariableVersionKey    = "variable.version"
	VariableIdentifierKey = "variable.identifier"

	// Batch attributes
	BatchKeysKey   = "batch.keys"
	BatchAtomicKey = "batch.atomic"

	// Watch attributes
	WatchStreamIDKey    = "watch.stream_id"
	WatchIdentifiersKey = "watch.identifiers"

	// Error attributes
	ErrorKey     = "error"
	ErrorKindKey = "error.kind"
)

// SessionAttributes creates session-related span attributes.
func SessionAttributes(sessionID string, ttlSeconds int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionIDKey, sessionID),
		attribute.Int64(SessionTTLKey, ttlSeconds),
	}
}

// VariableAttributes creates variable-related span attributes.
func VariableAttributes(id, name, typ string, version int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if id != "" {
		attrs = append(attrs, attribute.String(VariableIDKey, id))
	}
	if name != "" {
		attrs = append(attrs, attribute.String(VariableNameKey, name))
	}
	if typ != "" {
		attrs = append(attrs, attribute.String(VariableTypeKey, typ))
	}
	attrs = append(attrs, attribute.Int64(VariableVersionKey, version))
	return attrs
}

// WatchAttributes creates watch-stream span attributes.
func WatchAttributes(streamID string, identifiers int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(WatchStreamIDKey, streamID),
		attribute.Int(WatchIdentifiersKey, identifiers),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorKindKey, kind),
	}
}
