// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rpc

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ManuGH/varbridge/internal/rpc/wire"
	"github.com/ManuGH/varbridge/internal/telemetry"
)

// tracerName identifies spans emitted by the bridge service.
const tracerName = "varbridge.rpc"

// TraceUnary starts a server span per RPC. Session and variable
// attributes come from the request. Domain failures travel in-band in
// the response, so their kind becomes a span attribute; only transport
// errors mark the span itself as failed.
func TraceUnary() grpc.UnaryServerInterceptor {
	tracer := telemetry.Tracer(tracerName)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := tracer.Start(extractTraceContext(ctx), spanName(info.FullMethod),
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()
		span.SetAttributes(methodAttributes(info.FullMethod)...)
		span.SetAttributes(requestAttributes(req)...)

		resp, err := handler(ctx, req)
		finishSpan(span, resp, err)
		return resp, err
	}
}

// TraceStream is the streaming counterpart of TraceUnary. The watch
// request is decoded inside the handler, so watch attributes are added
// there through the span carried on the stream context.
func TraceStream() grpc.StreamServerInterceptor {
	tracer := telemetry.Tracer(tracerName)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span := tracer.Start(extractTraceContext(ss.Context()), spanName(info.FullMethod),
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()
		span.SetAttributes(methodAttributes(info.FullMethod)...)

		err := handler(srv, &tracedStream{ServerStream: ss, ctx: ctx})
		if err != nil {
			span.SetAttributes(telemetry.ErrorAttributes(err, transportErrorKind(err))...)
			span.SetStatus(otelcodes.Error, err.Error())
			return err
		}
		span.SetStatus(otelcodes.Ok, "")
		return nil
	}
}

// tracedStream hands the span context to the stream handler.
type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context { return s.ctx }

// metadataCarrier adapts incoming gRPC metadata to the propagator's
// carrier interface.
type metadataCarrier metadata.MD

func (c metadataCarrier) Get(key string) string {
	vals := metadata.MD(c).Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

func extractTraceContext(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))
}

func spanName(fullMethod string) string {
	return strings.TrimPrefix(fullMethod, "/")
}

func methodAttributes(fullMethod string) []attribute.KeyValue {
	service := wire.ServiceName
	method := fullMethod
	if i := strings.LastIndexByte(fullMethod, '/'); i >= 0 {
		method = fullMethod[i+1:]
		if i > 0 {
			service = strings.TrimPrefix(fullMethod[:i], "/")
		}
	}
	return []attribute.KeyValue{
		attribute.String(telemetry.RPCServiceKey, service),
		attribute.String(telemetry.RPCMethodKey, method),
	}
}

func sessionAttr(sessionID string) attribute.KeyValue {
	return attribute.String(telemetry.SessionIDKey, sessionID)
}

func requestAttributes(req any) []attribute.KeyValue {
	switch r := req.(type) {
	case *wire.CreateSessionRequest:
		return telemetry.SessionAttributes(r.SessionId, r.TtlSeconds)
	case *wire.DeleteSessionRequest:
		return []attribute.KeyValue{sessionAttr(r.SessionId)}
	case *wire.RegisterVariableRequest:
		return append([]attribute.KeyValue{sessionAttr(r.SessionId)},
			telemetry.VariableAttributes("", r.Name, r.Type.String(), 0)...)
	case *wire.GetVariableRequest:
		return identifierAttributes(r.SessionId, r.Identifier)
	case *wire.UpdateVariableRequest:
		return identifierAttributes(r.SessionId, r.Identifier)
	case *wire.DeleteVariableRequest:
		return identifierAttributes(r.SessionId, r.Identifier)
	case *wire.ListVariablesRequest:
		return []attribute.KeyValue{sessionAttr(r.SessionId)}
	case *wire.GetVariablesRequest:
		return []attribute.KeyValue{
			sessionAttr(r.SessionId),
			attribute.Int(telemetry.BatchKeysKey, len(r.Identifiers)),
		}
	case *wire.UpdateVariablesRequest:
		return []attribute.KeyValue{
			sessionAttr(r.SessionId),
			attribute.Int(telemetry.BatchKeysKey, len(r.Values)),
			attribute.Bool(telemetry.BatchAtomicKey, r.Atomic),
		}
	}
	return nil
}

func identifierAttributes(sessionID, identifier string) []attribute.KeyValue {
	return []attribute.KeyValue{
		sessionAttr(sessionID),
		attribute.String(telemetry.VariableIdentifierKey, identifier),
	}
}

func finishSpan(span trace.Span, resp any, err error) {
	if err != nil {
		span.SetAttributes(telemetry.ErrorAttributes(err, transportErrorKind(err))...)
		span.SetStatus(otelcodes.Error, err.Error())
		return
	}
	if msg := responseError(resp); msg != "" {
		// In-band failures are request outcomes, not span failures.
		span.SetAttributes(telemetry.ErrorAttributes(nil, errorKind(msg))...)
	}
	span.SetStatus(otelcodes.Ok, "")
}

func responseError(resp any) string {
	switch r := resp.(type) {
	case *wire.CreateSessionResponse:
		return r.Error
	case *wire.DeleteSessionResponse:
		return r.Error
	case *wire.RegisterVariableResponse:
		return r.Error
	case *wire.GetVariableResponse:
		return r.Error
	case *wire.UpdateVariableResponse:
		return r.Error
	case *wire.ListVariablesResponse:
		return r.Error
	case *wire.DeleteVariableResponse:
		return r.Error
	case *wire.GetVariablesResponse:
		return r.Error
	case *wire.UpdateVariablesResponse:
		return r.Error
	}
	return ""
}

// errorKind extracts the stable kind prefix from a wire error string.
func errorKind(msg string) string {
	i := strings.IndexByte(msg, ':')
	if i <= 0 {
		return "internal"
	}
	return msg[:i]
}

func transportErrorKind(err error) string {
	s, ok := status.FromError(err)
	if !ok {
		return "internal"
	}
	if msg := s.Message(); strings.IndexByte(msg, ':') > 0 {
		return errorKind(msg)
	}
	return s.Code().String()
}
