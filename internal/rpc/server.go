// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package rpc translates the wire protocol onto the session store and
// observer manager. Validation, constraint and lookup failures are
// recovered at this boundary: they travel back as the error arm of the
// response union, never as transport errors.
package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/varbridge/internal/log"
	"github.com/ManuGH/varbridge/internal/observer"
	"github.com/ManuGH/varbridge/internal/rpc/wire"
	"github.com/ManuGH/varbridge/internal/store"
	"github.com/ManuGH/varbridge/internal/vartype"
)

// DefaultHeartbeatInterval is the watch stream idle heartbeat period.
const DefaultHeartbeatInterval = 30 * time.Second

// Server implements wire.VarBridgeServer.
type Server struct {
	store     *store.Store
	observers *observer.Manager
	heartbeat time.Duration
	logger    zerolog.Logger
}

// Options configures a Server.
type Options struct {
	// HeartbeatInterval overrides the 30s watch heartbeat, for tests.
	HeartbeatInterval time.Duration
}

// NewServer creates the handler set over the given store and manager.
func NewServer(st *store.Store, obs *observer.Manager, opts Options) *Server {
	hb := opts.HeartbeatInterval
	if hb <= 0 {
		hb = DefaultHeartbeatInterval
	}
	return &Server{
		store:     st,
		observers: obs,
		heartbeat: hb,
		logger:    log.WithComponent("rpc"),
	}
}

func (s *Server) CreateSession(ctx context.Context, req *wire.CreateSessionRequest) (*wire.CreateSessionResponse, error) {
	created, err := s.store.CreateSession(req.SessionId, time.Duration(req.TtlSeconds)*time.Second)
	if err != nil {
		return &wire.CreateSessionResponse{Error: errString(err)}, nil
	}
	return &wire.CreateSessionResponse{Created: created}, nil
}

func (s *Server) DeleteSession(ctx context.Context, req *wire.DeleteSessionRequest) (*wire.DeleteSessionResponse, error) {
	if err := s.store.DeleteSession(req.SessionId); err != nil {
		return &wire.DeleteSessionResponse{Error: errString(err)}, nil
	}
	return &wire.DeleteSessionResponse{}, nil
}

func (s *Server) RegisterVariable(ctx context.Context, req *wire.RegisterVariableRequest) (*wire.RegisterVariableResponse, error) {
	tag := req.Type.Tag()
	if tag == "" {
		return &wire.RegisterVariableResponse{
			Error: errString(store.E(store.KindInvalidType, "unspecified variable type")),
		}, nil
	}
	initial, err := decodeAny(tag, req.InitialValue)
	if err != nil {
		return &wire.RegisterVariableResponse{Error: errString(err)}, nil
	}
	constraints, err := constraintsFromWire(req.Constraints)
	if err != nil {
		return &wire.RegisterVariableResponse{Error: errString(err)}, nil
	}
	v, err := s.store.RegisterVariable(req.SessionId, req.Name, tag, initial, constraints, req.Metadata, req.Optimizing)
	if err != nil {
		return &wire.RegisterVariableResponse{Error: errString(err)}, nil
	}
	return &wire.RegisterVariableResponse{VariableId: v.ID}, nil
}

func (s *Server) GetVariable(ctx context.Context, req *wire.GetVariableRequest) (*wire.GetVariableResponse, error) {
	v, err := s.store.GetVariable(req.SessionId, req.Identifier)
	if err != nil {
		return &wire.GetVariableResponse{Error: errString(err)}, nil
	}
	wv, err := variableToWire(v)
	if err != nil {
		return &wire.GetVariableResponse{Error: errString(err)}, nil
	}
	return &wire.GetVariableResponse{Variable: wv}, nil
}

// decodeForVariable decodes a wire value against the current type of an
// existing variable, so a mismatched envelope is rejected as
// type_mismatch before the store sees it.
func (s *Server) decodeForVariable(sessionID, identifier string, av *wire.AnyValue) (any, vartype.Type, error) {
	v, err := s.store.GetVariable(sessionID, identifier)
	if err != nil {
		return nil, "", err
	}
	value, err := decodeAny(v.Type, av)
	if err != nil {
		return nil, "", err
	}
	return value, v.Type, nil
}

func (s *Server) UpdateVariable(ctx context.Context, req *wire.UpdateVariableRequest) (*wire.UpdateVariableResponse, error) {
	value, _, err := s.decodeForVariable(req.SessionId, req.Identifier, req.Value)
	if err != nil {
		return &wire.UpdateVariableResponse{Error: errString(err)}, nil
	}
	v, err := s.store.UpdateVariable(req.SessionId, req.Identifier, value, req.Metadata)
	if err != nil {
		return &wire.UpdateVariableResponse{Error: errString(err)}, nil
	}
	wv, err := variableToWire(v)
	if err != nil {
		return &wire.UpdateVariableResponse{Error: errString(err)}, nil
	}
	return &wire.UpdateVariableResponse{Variable: wv}, nil
}

func (s *Server) ListVariables(ctx context.Context, req *wire.ListVariablesRequest) (*wire.ListVariablesResponse, error) {
	vars, err := s.store.ListVariables(req.SessionId, req.Pattern)
	if err != nil {
		return &wire.ListVariablesResponse{Error: errString(err)}, nil
	}
	out := make([]*wire.Variable, 0, len(vars))
	for _, v := range vars {
		wv, err := variableToWire(v)
		if err != nil {
			return &wire.ListVariablesResponse{Error: errString(err)}, nil
		}
		out = append(out, wv)
	}
	return &wire.ListVariablesResponse{Variables: out}, nil
}

func (s *Server) DeleteVariable(ctx context.Context, req *wire.DeleteVariableRequest) (*wire.DeleteVariableResponse, error) {
	if err := s.store.DeleteVariable(req.SessionId, req.Identifier); err != nil {
		return &wire.DeleteVariableResponse{Error: errString(err)}, nil
	}
	return &wire.DeleteVariableResponse{}, nil
}

func (s *Server) GetVariables(ctx context.Context, req *wire.GetVariablesRequest) (*wire.GetVariablesResponse, error) {
	batch, err := s.store.GetVariables(req.SessionId, req.Identifiers)
	if err != nil {
		return &wire.GetVariablesResponse{Error: errString(err)}, nil
	}
	found := make(map[string]*wire.Variable, len(batch.Found))
	for ident, v := range batch.Found {
		wv, err := variableToWire(v)
		if err != nil {
			return &wire.GetVariablesResponse{Error: errString(err)}, nil
		}
		found[ident] = wv
	}
	return &wire.GetVariablesResponse{Found: found, Missing: batch.Missing}, nil
}

func (s *Server) UpdateVariables(ctx context.Context, req *wire.UpdateVariablesRequest) (*wire.UpdateVariablesResponse, error) {
	// Decode envelopes against current variable types first. In atomic
	// mode a decode failure rejects the whole batch before any apply.
	values := make(map[string]any, len(req.Values))
	decodeErrs := make(map[string]string)
	for ident, av := range req.Values {
		value, _, err := s.decodeForVariable(req.SessionId, ident, av)
		if err != nil {
			if store.IsKind(err, store.KindSessionNotFound) || store.IsKind(err, store.KindSessionExpired) {
				return &wire.UpdateVariablesResponse{Error: errString(err)}, nil
			}
			decodeErrs[ident] = errString(err)
			continue
		}
		values[ident] = value
	}

	if req.Atomic && len(decodeErrs) > 0 {
		return &wire.UpdateVariablesResponse{
			Error:  errString(store.E(store.KindValidationFailed, "atomic batch rejected")),
			Errors: decodeErrs,
		}, nil
	}

	results, err := s.store.UpdateVariables(req.SessionId, values, req.Atomic, req.Metadata)
	if err != nil {
		resp := &wire.UpdateVariablesResponse{Error: errString(err)}
		var se *store.Error
		if errors.As(err, &se) && len(se.Details) > 0 {
			resp.Errors = se.Details
		}
		return resp, nil
	}

	out := make(map[string]*wire.UpdateResult, len(results)+len(decodeErrs))
	for ident, msg := range decodeErrs {
		out[ident] = &wire.UpdateResult{Error: msg}
	}
	for ident, item := range results {
		if item.Err != nil {
			out[ident] = &wire.UpdateResult{Error: item.Err.Error()}
			continue
		}
		wv, err := variableToWire(item.Variable)
		if err != nil {
			out[ident] = &wire.UpdateResult{Error: errString(err)}
			continue
		}
		out[ident] = &wire.UpdateResult{Variable: wv}
	}
	return &wire.UpdateVariablesResponse{Results: out}, nil
}

var _ wire.VarBridgeServer = (*Server)(nil)
