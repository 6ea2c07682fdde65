// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ManuGH/varbridge/internal/rpc/wire"
	"github.com/ManuGH/varbridge/internal/telemetry"
)

// newSpanRecorder installs a recording tracer provider for the test and
// restores the previous global on cleanup.
func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		require.NoError(t, tp.Shutdown(context.Background()))
	})
	return sr
}

func spanAttr(t *testing.T, span sdktrace.ReadOnlySpan, key string) attribute.Value {
	t.Helper()
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	t.Fatalf("attribute %q not on span %s", key, span.Name())
	return attribute.Value{}
}

func TestTraceUnaryStartsSpanPerRPC(t *testing.T) {
	sr := newSpanRecorder(t)
	intercept := TraceUnary()

	info := &grpc.UnaryServerInfo{FullMethod: "/" + wire.ServiceName + "/CreateSession"}
	resp, err := intercept(context.Background(),
		&wire.CreateSessionRequest{SessionId: "sess-1", TtlSeconds: 60}, info,
		func(ctx context.Context, req any) (any, error) {
			assert.True(t, trace.SpanContextFromContext(ctx).IsValid(), "handler runs inside the span")
			return &wire.CreateSessionResponse{Created: true}, nil
		})
	require.NoError(t, err)
	require.NotNil(t, resp)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, wire.ServiceName+"/CreateSession", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, wire.ServiceName, spanAttr(t, span, telemetry.RPCServiceKey).AsString())
	assert.Equal(t, "CreateSession", spanAttr(t, span, telemetry.RPCMethodKey).AsString())
	assert.Equal(t, "sess-1", spanAttr(t, span, telemetry.SessionIDKey).AsString())
	assert.Equal(t, int64(60), spanAttr(t, span, telemetry.SessionTTLKey).AsInt64())
	assert.Equal(t, otelcodes.Ok, span.Status().Code)
}

func TestTraceUnaryRecordsInBandErrorKind(t *testing.T) {
	sr := newSpanRecorder(t)
	intercept := TraceUnary()

	info := &grpc.UnaryServerInfo{FullMethod: "/" + wire.ServiceName + "/GetVariable"}
	_, err := intercept(context.Background(),
		&wire.GetVariableRequest{SessionId: "sess-1", Identifier: "lr"}, info,
		func(ctx context.Context, req any) (any, error) {
			return &wire.GetVariableResponse{Error: `not_found: variable "lr"`}, nil
		})
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "lr", spanAttr(t, span, telemetry.VariableIdentifierKey).AsString())
	assert.True(t, spanAttr(t, span, telemetry.ErrorKey).AsBool())
	assert.Equal(t, "not_found", spanAttr(t, span, telemetry.ErrorKindKey).AsString())
	// Domain failures travel in-band and do not fail the span.
	assert.Equal(t, otelcodes.Ok, span.Status().Code)
}

func TestTraceUnaryMarksTransportError(t *testing.T) {
	sr := newSpanRecorder(t)
	intercept := TraceUnary()

	info := &grpc.UnaryServerInfo{FullMethod: "/" + wire.ServiceName + "/GetVariable"}
	_, err := intercept(context.Background(),
		&wire.GetVariableRequest{SessionId: "sess-1", Identifier: "lr"}, info,
		func(ctx context.Context, req any) (any, error) {
			return nil, status.Error(codes.Internal, "request failed")
		})
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, otelcodes.Error, span.Status().Code)
	assert.Equal(t, codes.Internal.String(), spanAttr(t, span, telemetry.ErrorKindKey).AsString())
}

func TestTraceUnaryContinuesIncomingTrace(t *testing.T) {
	sr := newSpanRecorder(t)
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })
	intercept := TraceUnary()

	md := metadata.Pairs("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + wire.ServiceName + "/ListVariables"}
	_, err := intercept(ctx, &wire.ListVariablesRequest{SessionId: "sess-1"}, info,
		func(ctx context.Context, req any) (any, error) {
			return &wire.ListVariablesResponse{}, nil
		})
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
}

type stubServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubServerStream) Context() context.Context { return s.ctx }

func TestTraceStreamSpansWatch(t *testing.T) {
	sr := newSpanRecorder(t)
	intercept := TraceStream()

	info := &grpc.StreamServerInfo{
		FullMethod:     "/" + wire.ServiceName + "/WatchVariables",
		IsServerStream: true,
	}
	err := intercept(nil, &stubServerStream{ctx: context.Background()}, info,
		func(srv any, ss grpc.ServerStream) error {
			assert.True(t, trace.SpanContextFromContext(ss.Context()).IsValid(), "handler stream carries the span")
			return status.Error(codes.NotFound, `session_not_found: session "nope"`)
		})
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, wire.ServiceName+"/WatchVariables", span.Name())
	assert.Equal(t, "WatchVariables", spanAttr(t, span, telemetry.RPCMethodKey).AsString())
	assert.Equal(t, otelcodes.Error, span.Status().Code)
	assert.Equal(t, "session_not_found", spanAttr(t, span, telemetry.ErrorKindKey).AsString())
}
