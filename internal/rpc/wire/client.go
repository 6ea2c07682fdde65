// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package wire

import (
	"context"

	"google.golang.org/grpc"
)

// CallOption selects the service's JSON content-subtype. Every client
// call must carry it; the constructor below appends it automatically.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}

// VarBridgeClient is the client contract for the bridge service.
type VarBridgeClient interface {
	CreateSession(ctx context.Context, in *CreateSessionRequest, opts ...grpc.CallOption) (*CreateSessionResponse, error)
	DeleteSession(ctx context.Context, in *DeleteSessionRequest, opts ...grpc.CallOption) (*DeleteSessionResponse, error)
	RegisterVariable(ctx context.Context, in *RegisterVariableRequest, opts ...grpc.CallOption) (*RegisterVariableResponse, error)
	GetVariable(ctx context.Context, in *GetVariableRequest, opts ...grpc.CallOption) (*GetVariableResponse, error)
	UpdateVariable(ctx context.Context, in *UpdateVariableRequest, opts ...grpc.CallOption) (*UpdateVariableResponse, error)
	ListVariables(ctx context.Context, in *ListVariablesRequest, opts ...grpc.CallOption) (*ListVariablesResponse, error)
	DeleteVariable(ctx context.Context, in *DeleteVariableRequest, opts ...grpc.CallOption) (*DeleteVariableResponse, error)
	GetVariables(ctx context.Context, in *GetVariablesRequest, opts ...grpc.CallOption) (*GetVariablesResponse, error)
	UpdateVariables(ctx context.Context, in *UpdateVariablesRequest, opts ...grpc.CallOption) (*UpdateVariablesResponse, error)
	WatchVariables(ctx context.Context, in *WatchVariablesRequest, opts ...grpc.CallOption) (VarBridgeWatchVariablesClient, error)
}

// VarBridgeWatchVariablesClient is the client side of the watch stream.
type VarBridgeWatchVariablesClient interface {
	Recv() (*VariableUpdate, error)
	grpc.ClientStream
}

type varBridgeClient struct {
	cc grpc.ClientConnInterface
}

// NewVarBridgeClient creates a client over an established connection.
func NewVarBridgeClient(cc grpc.ClientConnInterface) VarBridgeClient {
	return &varBridgeClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *varBridgeClient) CreateSession(ctx context.Context, in *CreateSessionRequest, opts ...grpc.CallOption) (*CreateSessionResponse, error) {
	return invoke[CreateSessionResponse](ctx, c.cc, "CreateSession", in, opts)
}

func (c *varBridgeClient) DeleteSession(ctx context.Context, in *DeleteSessionRequest, opts ...grpc.CallOption) (*DeleteSessionResponse, error) {
	return invoke[DeleteSessionResponse](ctx, c.cc, "DeleteSession", in, opts)
}

func (c *varBridgeClient) RegisterVariable(ctx context.Context, in *RegisterVariableRequest, opts ...grpc.CallOption) (*RegisterVariableResponse, error) {
	return invoke[RegisterVariableResponse](ctx, c.cc, "RegisterVariable", in, opts)
}

func (c *varBridgeClient) GetVariable(ctx context.Context, in *GetVariableRequest, opts ...grpc.CallOption) (*GetVariableResponse, error) {
	return invoke[GetVariableResponse](ctx, c.cc, "GetVariable", in, opts)
}

func (c *varBridgeClient) UpdateVariable(ctx context.Context, in *UpdateVariableRequest, opts ...grpc.CallOption) (*UpdateVariableResponse, error) {
	return invoke[UpdateVariableResponse](ctx, c.cc, "UpdateVariable", in, opts)
}

func (c *varBridgeClient) ListVariables(ctx context.Context, in *ListVariablesRequest, opts ...grpc.CallOption) (*ListVariablesResponse, error) {
	return invoke[ListVariablesResponse](ctx, c.cc, "ListVariables", in, opts)
}

func (c *varBridgeClient) DeleteVariable(ctx context.Context, in *DeleteVariableRequest, opts ...grpc.CallOption) (*DeleteVariableResponse, error) {
	return invoke[DeleteVariableResponse](ctx, c.cc, "DeleteVariable", in, opts)
}

func (c *varBridgeClient) GetVariables(ctx context.Context, in *GetVariablesRequest, opts ...grpc.CallOption) (*GetVariablesResponse, error) {
	return invoke[GetVariablesResponse](ctx, c.cc, "GetVariables", in, opts)
}

func (c *varBridgeClient) UpdateVariables(ctx context.Context, in *UpdateVariablesRequest, opts ...grpc.CallOption) (*UpdateVariablesResponse, error) {
	return invoke[UpdateVariablesResponse](ctx, c.cc, "UpdateVariables", in, opts)
}

func (c *varBridgeClient) WatchVariables(ctx context.Context, in *WatchVariablesRequest, opts ...grpc.CallOption) (VarBridgeWatchVariablesClient, error) {
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &VarBridgeServiceDesc.Streams[0], "/"+ServiceName+"/WatchVariables", opts...)
	if err != nil {
		return nil, err
	}
	x := &watchVariablesClient{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type watchVariablesClient struct {
	grpc.ClientStream
}

func (x *watchVariablesClient) Recv() (*VariableUpdate, error) {
	u := new(VariableUpdate)
	if err := x.ClientStream.RecvMsg(u); err != nil {
		return nil, err
	}
	return u, nil
}
