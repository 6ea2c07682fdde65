// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package wire defines the varbridge.v1 protocol messages and service
// descriptor. The schema is documented for non-Go peers in
// api/proto/varbridge/v1/varbridge.proto; messages travel as JSON
// (content-subtype "json"), which keeps the dynamically-typed value
// envelopes language-neutral without a code generation step.
package wire

import "github.com/ManuGH/varbridge/internal/vartype"

// VariableType enumerates the closed type set.
type VariableType int32

const (
	VariableTypeUnspecified VariableType = 0
	VariableTypeFloat       VariableType = 1
	VariableTypeInteger     VariableType = 2
	VariableTypeString      VariableType = 3
	VariableTypeBoolean     VariableType = 4
	VariableTypeChoice      VariableType = 5
	VariableTypeModule      VariableType = 6
	VariableTypeEmbedding   VariableType = 7
	VariableTypeTensor      VariableType = 8
)

var typeTags = map[VariableType]vartype.Type{
	VariableTypeFloat:     vartype.TypeFloat,
	VariableTypeInteger:   vartype.TypeInteger,
	VariableTypeString:    vartype.TypeString,
	VariableTypeBoolean:   vartype.TypeBoolean,
	VariableTypeChoice:    vartype.TypeChoice,
	VariableTypeModule:    vartype.TypeModule,
	VariableTypeEmbedding: vartype.TypeEmbedding,
	VariableTypeTensor:    vartype.TypeTensor,
}

// Tag maps the enum to its type tag, or "" for unspecified/unknown.
func (t VariableType) Tag() vartype.Type {
	return typeTags[t]
}

// String implements fmt.Stringer for logs and errors.
func (t VariableType) String() string {
	if tag, ok := typeTags[t]; ok {
		return string(tag)
	}
	return "unspecified"
}

// TypeFromTag maps a type tag to the wire enum.
func TypeFromTag(tag vartype.Type) VariableType {
	for t, candidate := range typeTags {
		if candidate == tag {
			return t
		}
	}
	return VariableTypeUnspecified
}

// AnyValue wraps a dynamically-typed value: a type_url whose last path
// segment repeats the envelope's tag, and the JSON envelope bytes.
type AnyValue struct {
	TypeURL string `json:"type_url,omitempty"`
	Value   []byte `json:"value,omitempty"`
}

// Variable is the full wire record of a variable.
type Variable struct {
	Id            string               `json:"id"`
	Name          string               `json:"name"`
	Type          VariableType         `json:"type"`
	Value         *AnyValue            `json:"value,omitempty"`
	Constraints   map[string]*AnyValue `json:"constraints,omitempty"`
	Metadata      map[string]string    `json:"metadata,omitempty"`
	Version       int32                `json:"version"`
	CreatedAt     int64                `json:"created_at"`
	LastUpdatedAt int64                `json:"last_updated_at"`
	Optimizing    bool                 `json:"optimizing,omitempty"`
}

// VariableUpdate is one streamed watch event. A heartbeat carries an
// empty variable_id and only a timestamp.
type VariableUpdate struct {
	VariableId string            `json:"variable_id"`
	Name       string            `json:"name,omitempty"`
	OldValue   *AnyValue         `json:"old_value,omitempty"`
	NewValue   *AnyValue         `json:"new_value,omitempty"`
	Version    int32             `json:"version"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

type CreateSessionRequest struct {
	SessionId  string `json:"session_id"`
	TtlSeconds int64  `json:"ttl_seconds,omitempty"`
}

type CreateSessionResponse struct {
	Created bool   `json:"created"`
	Error   string `json:"error,omitempty"`
}

type DeleteSessionRequest struct {
	SessionId string `json:"session_id"`
}

type DeleteSessionResponse struct {
	Error string `json:"error,omitempty"`
}

type RegisterVariableRequest struct {
	SessionId    string               `json:"session_id"`
	Name         string               `json:"name"`
	Type         VariableType         `json:"type"`
	InitialValue *AnyValue            `json:"initial_value,omitempty"`
	Constraints  map[string]*AnyValue `json:"constraints,omitempty"`
	Metadata     map[string]string    `json:"metadata,omitempty"`
	Optimizing   bool                 `json:"optimizing,omitempty"`
}

type RegisterVariableResponse struct {
	VariableId string `json:"variable_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

type GetVariableRequest struct {
	SessionId  string `json:"session_id"`
	Identifier string `json:"identifier"`
}

type GetVariableResponse struct {
	Variable *Variable `json:"variable,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type UpdateVariableRequest struct {
	SessionId  string            `json:"session_id"`
	Identifier string            `json:"identifier"`
	Value      *AnyValue         `json:"value,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type UpdateVariableResponse struct {
	Variable *Variable `json:"variable,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type ListVariablesRequest struct {
	SessionId string `json:"session_id"`
	Pattern   string `json:"pattern,omitempty"`
}

type ListVariablesResponse struct {
	Variables []*Variable `json:"variables,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type DeleteVariableRequest struct {
	SessionId  string `json:"session_id"`
	Identifier string `json:"identifier"`
}

type DeleteVariableResponse struct {
	Error string `json:"error,omitempty"`
}

type GetVariablesRequest struct {
	SessionId   string   `json:"session_id"`
	Identifiers []string `json:"identifiers"`
}

type GetVariablesResponse struct {
	Found   map[string]*Variable `json:"found,omitempty"`
	Missing []string             `json:"missing,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type UpdateVariablesRequest struct {
	SessionId string               `json:"session_id"`
	Values    map[string]*AnyValue `json:"values"`
	Atomic    bool                 `json:"atomic,omitempty"`
	Metadata  map[string]string    `json:"metadata,omitempty"`
}

// UpdateResult is the per-key outcome of a non-atomic batch.
type UpdateResult struct {
	Variable *Variable `json:"variable,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type UpdateVariablesResponse struct {
	Results map[string]*UpdateResult `json:"results,omitempty"`
	// Errors carries per-key reasons when an atomic batch is rejected.
	Errors map[string]string `json:"errors,omitempty"`
	Error  string            `json:"error,omitempty"`
}

type WatchVariablesRequest struct {
	SessionId string `json:"session_id"`
	// Identifiers are names, var ids or `*` patterns. Unknowns are not
	// errors and resolve to nothing.
	Identifiers    []string `json:"identifiers,omitempty"`
	IncludeInitial bool     `json:"include_initial,omitempty"`
}
