// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rpc

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ManuGH/varbridge/internal/codec"
	"github.com/ManuGH/varbridge/internal/observer"
	"github.com/ManuGH/varbridge/internal/rpc/wire"
	"github.com/ManuGH/varbridge/internal/store"
	"github.com/ManuGH/varbridge/internal/vartype"
)

type testBridge struct {
	store     *store.Store
	observers *observer.Manager
	client    wire.VarBridgeClient
}

// newBridge spins a full in-process bridge over bufconn.
func newBridge(t *testing.T, opts Options) *testBridge {
	return newBridgeClock(t, opts, nil)
}

func newBridgeClock(t *testing.T, opts Options, now func() time.Time) *testBridge {
	t.Helper()

	st := store.New(store.Options{DefaultTTL: time.Hour, Now: now})
	obs := observer.NewManager(st, observer.Options{SinkCapacity: 8})
	st.SetNotifier(obs)

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary()),
		grpc.ChainStreamInterceptor(RecoverStream()),
	)
	wire.RegisterVarBridgeServer(srv, NewServer(st, obs, opts))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(wire.CallOption()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testBridge{store: st, observers: obs, client: wire.NewVarBridgeClient(conn)}
}

func anyValue(t *testing.T, typ vartype.Type, value any) *wire.AnyValue {
	t.Helper()
	url, data, err := codec.Encode(typ, value)
	require.NoError(t, err)
	return &wire.AnyValue{TypeURL: url, Value: data}
}

func mustValue(t *testing.T, typ vartype.Type, av *wire.AnyValue) any {
	t.Helper()
	v, err := codec.Decode(typ, av.TypeURL, av.Value)
	require.NoError(t, err)
	return v
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRegisterGetUpdateLifecycle(t *testing.T) {
	b := newBridge(t, Options{})
	ctx := ctxT(t)

	_, err := b.client.CreateSession(ctx, &wire.CreateSessionRequest{SessionId: "sess-1"})
	require.NoError(t, err)

	reg, err := b.client.RegisterVariable(ctx, &wire.RegisterVariableRequest{
		SessionId:    "sess-1",
		Name:         "learning_rate",
		Type:         wire.VariableTypeFloat,
		InitialValue: anyValue(t, vartype.TypeFloat, 0.01),
		Constraints: map[string]*wire.AnyValue{
			"min": {Value: []byte("0")},
			"max": {Value: []byte("1")},
		},
		Metadata: map[string]string{"origin": "tuner"},
	})
	require.NoError(t, err)
	require.Empty(t, reg.Error)
	assert.Contains(t, reg.VariableId, "var_learning_rate_")

	got, err := b.client.GetVariable(ctx, &wire.GetVariableRequest{
		SessionId:  "sess-1",
		Identifier: "learning_rate",
	})
	require.NoError(t, err)
	require.Empty(t, got.Error)
	assert.Equal(t, int32(0), got.Variable.Version)
	assert.Equal(t, 0.01, mustValue(t, vartype.TypeFloat, got.Variable.Value))

	upd, err := b.client.UpdateVariable(ctx, &wire.UpdateVariableRequest{
		SessionId:  "sess-1",
		Identifier: reg.VariableId,
		Value:      anyValue(t, vartype.TypeFloat, 0.5),
	})
	require.NoError(t, err)
	require.Empty(t, upd.Error)
	assert.Equal(t, int32(1), upd.Variable.Version)
	assert.Equal(t, 0.5, mustValue(t, vartype.TypeFloat, upd.Variable.Value))
}

func TestValidationErrorsAreInBand(t *testing.T) {
	b := newBridge(t, Options{})
	ctx := ctxT(t)

	reg, err := b.client.RegisterVariable(ctx, &wire.RegisterVariableRequest{
		SessionId:    "sess-1",
		Name:         "lr",
		Type:         wire.VariableTypeFloat,
		InitialValue: anyValue(t, vartype.TypeFloat, 0.5),
		Constraints:  map[string]*wire.AnyValue{"max": {Value: []byte("1")}},
	})
	require.NoError(t, err)
	require.Empty(t, reg.Error)

	// Constraint violation: transported as response error, not gRPC error.
	upd, err := b.client.UpdateVariable(ctx, &wire.UpdateVariableRequest{
		SessionId:  "sess-1",
		Identifier: "lr",
		Value:      anyValue(t, vartype.TypeFloat, 2.0),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upd.Error, "constraint_violation:"), upd.Error)

	// Failed update left no trace.
	got, err := b.client.GetVariable(ctx, &wire.GetVariableRequest{SessionId: "sess-1", Identifier: "lr"})
	require.NoError(t, err)
	assert.Equal(t, int32(0), got.Variable.Version)

	// Unknown session and unknown variable.
	miss, err := b.client.GetVariable(ctx, &wire.GetVariableRequest{SessionId: "ghost", Identifier: "lr"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(miss.Error, "session_not_found:"), miss.Error)

	miss, err = b.client.GetVariable(ctx, &wire.GetVariableRequest{SessionId: "sess-1", Identifier: "ghost"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(miss.Error, "not_found:"), miss.Error)
}

func TestTypeMismatchRejectedBeforeStore(t *testing.T) {
	b := newBridge(t, Options{})
	ctx := ctxT(t)

	reg, err := b.client.RegisterVariable(ctx, &wire.RegisterVariableRequest{
		SessionId:    "sess-1",
		Name:         "lr",
		Type:         wire.VariableTypeFloat,
		InitialValue: anyValue(t, vartype.TypeFloat, 0.5),
	})
	require.NoError(t, err)
	require.Empty(t, reg.Error)

	// A string envelope against a float variable.
	upd, err := b.client.UpdateVariable(ctx, &wire.UpdateVariableRequest{
		SessionId:  "sess-1",
		Identifier: "lr",
		Value:      anyValue(t, vartype.TypeString, "fast"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upd.Error, "type_mismatch:"), upd.Error)

	got, err := b.client.GetVariable(ctx, &wire.GetVariableRequest{SessionId: "sess-1", Identifier: "lr"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, mustValue(t, vartype.TypeFloat, got.Variable.Value))
	assert.Equal(t, int32(0), got.Variable.Version)
}

func TestUnspecifiedTypeRejected(t *testing.T) {
	b := newBridge(t, Options{})
	ctx := ctxT(t)

	reg, err := b.client.RegisterVariable(ctx, &wire.RegisterVariableRequest{
		SessionId:    "sess-1",
		Name:         "x",
		InitialValue: anyValue(t, vartype.TypeFloat, 1.0),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reg.Error, "invalid_type:"), reg.Error)
}

func TestListAndDeleteVariables(t *testing.T) {
	b := newBridge(t, Options{})
	ctx := ctxT(t)

	for _, name := range []string{"model.lr", "model.mom", "data.batch"} {
		reg, err := b.client.RegisterVariable(ctx, &wire.RegisterVariableRequest{
			SessionId:    "sess-1",
			Name:         name,
			Type:         wire.VariableTypeFloat,
			InitialValue: anyValue(t, vartype.TypeFloat, 1.0),
		})
		require.NoError(t, err)
		require.Empty(t, reg.Error)
	}

	list, err := b.client.ListVariables(ctx, &wire.ListVariablesRequest{SessionId: "sess-1", Pattern: "model.*"})
	require.NoError(t, err)
	require.Empty(t, list.Error)
	require.Len(t, list.Variables, 2)
	assert.Equal(t, "model.lr", list.Variables[0].Name)
	assert.Equal(t, "model.mom", list.Variables[1].Name)

	del, err := b.client.DeleteVariable(ctx, &wire.DeleteVariableRequest{SessionId: "sess-1", Identifier: "model.lr"})
	require.NoError(t, err)
	assert.Empty(t, del.Error)

	list, err = b.client.ListVariables(ctx, &wire.ListVariablesRequest{SessionId: "sess-1"})
	require.NoError(t, err)
	assert.Len(t, list.Variables, 2)
}

func TestBatchGet(t *testing.T) {
	b := newBridge(t, Options{})
	ctx := ctxT(t)

	reg, err := b.client.RegisterVariable(ctx, &wire.RegisterVariableRequest{
		SessionId:    "sess-1",
		Name:         "a",
		Type:         wire.VariableTypeInteger,
		InitialValue: anyValue(t, vartype.TypeInteger, int64(1)),
	})
	require.NoError(t, err)
	require.Empty(t, reg.Error)

	got, err := b.client.GetVariables(ctx, &wire.GetVariablesRequest{
		SessionId:   "sess-1",
		Identifiers: []string{"a", reg.VariableId, "missing"},
	})
	require.NoError(t, err)
	require.Empty(t, got.Error)
	assert.Len(t, got.Found, 2)
	assert.Equal(t, []string{"missing"}, got.Missing)
}

func TestBatchUpdateAtomic(t *testing.T) {
	b := newBridge(t, Options{})
	ctx := ctxT(t)

	for _, v := range []struct {
		name string
		max  string
	}{{"a", "10"}, {"b", "1"}} {
		reg, err := b.client.RegisterVariable(ctx, &wire.RegisterVariableRequest{
			SessionId:    "sess-1",
			Name:         v.name,
			Type:         wire.VariableTypeInteger,
			InitialValue: anyValue(t, vartype.TypeInteger, int64(0)),
			Constraints:  map[string]*wire.AnyValue{"max": {Value: []byte(v.max)}},
		})
		require.NoError(t, err)
		require.Empty(t, reg.Error)
	}

	// b=5 violates max=1: nothing applies, per-key reasons come back.
	resp, err := b.client.UpdateVariables(ctx, &wire.UpdateVariablesRequest{
		SessionId: "sess-1",
		Values: map[string]*wire.AnyValue{
			"a": anyValue(t, vartype.TypeInteger, int64(5)),
			"b": anyValue(t, vartype.TypeInteger, int64(5)),
		},
		Atomic: true,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Error, "validation_failed:"), resp.Error)
	assert.Contains(t, resp.Errors, "b")
	assert.NotContains(t, resp.Errors, "a")

	got, err := b.client.GetVariable(ctx, &wire.GetVariableRequest{SessionId: "sess-1", Identifier: "a"})
	require.NoError(t, err)
	assert.Equal(t, int32(0), got.Variable.Version)

	// Valid batch applies both.
	resp, err = b.client.UpdateVariables(ctx, &wire.UpdateVariablesRequest{
		SessionId: "sess-1",
		Values: map[string]*wire.AnyValue{
			"a": anyValue(t, vartype.TypeInteger, int64(5)),
			"b": anyValue(t, vartype.TypeInteger, int64(1)),
		},
		Atomic: true,
	})
	require.NoError(t, err)
	require.Empty(t, resp.Error)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, int32(1), resp.Results["a"].Variable.Version)
}

func TestBatchUpdateNonAtomicPartial(t *testing.T) {
	b := newBridge(t, Options{})
	ctx := ctxT(t)

	reg, err := b.client.RegisterVariable(ctx, &wire.RegisterVariableRequest{
		SessionId:    "sess-1",
		Name:         "a",
		Type:         wire.VariableTypeInteger,
		InitialValue: anyValue(t, vartype.TypeInteger, int64(0)),
	})
	require.NoError(t, err)
	require.Empty(t, reg.Error)

	resp, err := b.client.UpdateVariables(ctx, &wire.UpdateVariablesRequest{
		SessionId: "sess-1",
		Values: map[string]*wire.AnyValue{
			"a":       anyValue(t, vartype.TypeInteger, int64(7)),
			"missing": anyValue(t, vartype.TypeInteger, int64(1)),
		},
	})
	require.NoError(t, err)
	require.Empty(t, resp.Error)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, int32(1), resp.Results["a"].Variable.Version)
	assert.True(t, strings.HasPrefix(resp.Results["missing"].Error, "not_found:"))
}

func TestDeleteSessionRPC(t *testing.T) {
	b := newBridge(t, Options{})
	ctx := ctxT(t)

	created, err := b.client.CreateSession(ctx, &wire.CreateSessionRequest{SessionId: "sess-1"})
	require.NoError(t, err)
	assert.True(t, created.Created)

	// Duplicate create reports created=false without error.
	created, err = b.client.CreateSession(ctx, &wire.CreateSessionRequest{SessionId: "sess-1"})
	require.NoError(t, err)
	assert.False(t, created.Created)
	assert.Empty(t, created.Error)

	del, err := b.client.DeleteSession(ctx, &wire.DeleteSessionRequest{SessionId: "sess-1"})
	require.NoError(t, err)
	assert.Empty(t, del.Error)

	del, err = b.client.DeleteSession(ctx, &wire.DeleteSessionRequest{SessionId: "sess-1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(del.Error, "session_not_found:"), del.Error)
}
