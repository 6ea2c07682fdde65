// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rpc

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ManuGH/varbridge/internal/log"
	"github.com/ManuGH/varbridge/internal/metrics"
	"github.com/ManuGH/varbridge/internal/observer"
	"github.com/ManuGH/varbridge/internal/rpc/wire"
	"github.com/ManuGH/varbridge/internal/store"
	"github.com/ManuGH/varbridge/internal/telemetry"
)

// WatchVariables registers an observer and streams its events. The
// observer is registered atomically with its initial snapshot before
// anything is sent, so no mutation can slip between snapshot and
// registration. One dispatch loop owns the stream: it drains the
// observer's bounded sink, emits an idle heartbeat, and tears the
// observer down on any exit path.
func (s *Server) WatchVariables(req *wire.WatchVariablesRequest, stream wire.VarBridgeWatchVariablesServer) error {
	ctx := stream.Context()

	handle, sink, err := s.observers.Watch(observer.WatchRequest{
		SessionID:      req.SessionId,
		Identifiers:    req.Identifiers,
		IncludeInitial: req.IncludeInitial,
		Liveness:       ctx,
	})
	if err != nil {
		switch store.KindOf(err) {
		case store.KindSessionNotFound:
			return status.Error(codes.NotFound, errString(err))
		case store.KindSessionExpired:
			return status.Error(codes.FailedPrecondition, errString(err))
		}
		return status.Error(codes.Internal, errString(err))
	}
	defer s.observers.Unwatch(handle)

	trace.SpanFromContext(ctx).SetAttributes(
		telemetry.WatchAttributes(string(handle), len(req.Identifiers))...)

	metrics.WatchStreamsActive.Inc()
	defer metrics.WatchStreamsActive.Dec()

	logger := s.logger.With().
		Str(log.FieldSessionID, req.SessionId).
		Str(log.FieldStreamID, string(handle)).
		Logger()
	logger.Debug().Int("identifiers", len(req.Identifiers)).Msg("watch stream opened")

	// Pump task: the sink's single consumer.
	events := make(chan observer.Event, 1)
	go func() {
		defer close(events)
		for {
			e, ok := sink.Next(ctx)
			if !ok {
				return
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	hb := time.NewTimer(s.heartbeat)
	defer hb.Stop()
	resetHeartbeat := func() {
		if !hb.Stop() {
			select {
			case <-hb.C:
			default:
			}
		}
		hb.Reset(s.heartbeat)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("watch stream closed by client")
			return nil

		case e, ok := <-events:
			if !ok {
				// Sink closed: session deleted, expired, or observer swept.
				logger.Debug().Msg("watch stream sink closed")
				return nil
			}
			u, err := updateToWire(e.Update, e.Dropped)
			if err != nil {
				logger.Error().Err(err).Str(log.FieldVariableID, e.Update.VariableID).Msg("failed to encode update")
				continue
			}
			if err := stream.Send(u); err != nil {
				logger.Debug().Err(err).Msg("watch stream send failed")
				return err
			}
			resetHeartbeat()
			if e.Update.Kind == store.UpdateSessionExpired {
				logger.Debug().Msg("watch stream ended by session expiry")
				return nil
			}

		case <-hb.C:
			// Idle heartbeat: empty variable_id, timestamp only.
			if err := stream.Send(&wire.VariableUpdate{Timestamp: time.Now().Unix()}); err != nil {
				logger.Debug().Err(err).Msg("watch heartbeat send failed")
				return err
			}
			metrics.HeartbeatsSentTotal.Inc()
			hb.Reset(s.heartbeat)
		}
	}
}
