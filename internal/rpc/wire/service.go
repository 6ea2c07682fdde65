// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package wire

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "varbridge.v1.VarBridge"

// VarBridgeServer is the server contract for the bridge service.
type VarBridgeServer interface {
	CreateSession(context.Context, *CreateSessionRequest) (*CreateSessionResponse, error)
	DeleteSession(context.Context, *DeleteSessionRequest) (*DeleteSessionResponse, error)
	RegisterVariable(context.Context, *RegisterVariableRequest) (*RegisterVariableResponse, error)
	GetVariable(context.Context, *GetVariableRequest) (*GetVariableResponse, error)
	UpdateVariable(context.Context, *UpdateVariableRequest) (*UpdateVariableResponse, error)
	ListVariables(context.Context, *ListVariablesRequest) (*ListVariablesResponse, error)
	DeleteVariable(context.Context, *DeleteVariableRequest) (*DeleteVariableResponse, error)
	GetVariables(context.Context, *GetVariablesRequest) (*GetVariablesResponse, error)
	UpdateVariables(context.Context, *UpdateVariablesRequest) (*UpdateVariablesResponse, error)
	WatchVariables(*WatchVariablesRequest, VarBridgeWatchVariablesServer) error
}

// VarBridgeWatchVariablesServer is the server side of the watch stream.
type VarBridgeWatchVariablesServer interface {
	Send(*VariableUpdate) error
	grpc.ServerStream
}

type watchVariablesServer struct {
	grpc.ServerStream
}

func (s *watchVariablesServer) Send(u *VariableUpdate) error {
	return s.ServerStream.SendMsg(u)
}

// RegisterVarBridgeServer attaches the service to a grpc server.
func RegisterVarBridgeServer(s grpc.ServiceRegistrar, srv VarBridgeServer) {
	s.RegisterService(&VarBridgeServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(VarBridgeServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(VarBridgeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(VarBridgeServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// VarBridgeServiceDesc is the service descriptor. Maintained by hand,
// matching api/proto/varbridge/v1/varbridge.proto.
var VarBridgeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VarBridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateSession",
			Handler:    unaryHandler("CreateSession", VarBridgeServer.CreateSession),
		},
		{
			MethodName: "DeleteSession",
			Handler:    unaryHandler("DeleteSession", VarBridgeServer.DeleteSession),
		},
		{
			MethodName: "RegisterVariable",
			Handler:    unaryHandler("RegisterVariable", VarBridgeServer.RegisterVariable),
		},
		{
			MethodName: "GetVariable",
			Handler:    unaryHandler("GetVariable", VarBridgeServer.GetVariable),
		},
		{
			MethodName: "UpdateVariable",
			Handler:    unaryHandler("UpdateVariable", VarBridgeServer.UpdateVariable),
		},
		{
			MethodName: "ListVariables",
			Handler:    unaryHandler("ListVariables", VarBridgeServer.ListVariables),
		},
		{
			MethodName: "DeleteVariable",
			Handler:    unaryHandler("DeleteVariable", VarBridgeServer.DeleteVariable),
		},
		{
			MethodName: "GetVariables",
			Handler:    unaryHandler("GetVariables", VarBridgeServer.GetVariables),
		},
		{
			MethodName: "UpdateVariables",
			Handler:    unaryHandler("UpdateVariables", VarBridgeServer.UpdateVariables),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchVariables",
			Handler:       watchVariablesStreamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "varbridge/v1/varbridge.proto",
}

func watchVariablesStreamHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchVariablesRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(VarBridgeServer).WatchVariables(in, &watchVariablesServer{stream})
}
