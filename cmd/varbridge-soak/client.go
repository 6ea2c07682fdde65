// Package main - gRPC client plumbing for the soak harness.
package main

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ManuGH/varbridge/internal/codec"
	"github.com/ManuGH/varbridge/internal/rpc/wire"
	"github.com/ManuGH/varbridge/internal/vartype"
)

// bridgeClient wraps the wire client with the envelope helpers the
// scenarios need.
type bridgeClient struct {
	conn *grpc.ClientConn
	api  wire.VarBridgeClient
}

func dial(target string) (*bridgeClient, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(wire.CallOption()),
	)
	if err != nil {
		return nil, err
	}
	return &bridgeClient{conn: conn, api: wire.NewVarBridgeClient(conn)}, nil
}

func (c *bridgeClient) Close() {
	_ = c.conn.Close()
}

func floatValue(v float64) (*wire.AnyValue, error) {
	url, data, err := codec.Encode(vartype.TypeFloat, v)
	if err != nil {
		return nil, err
	}
	return &wire.AnyValue{TypeURL: url, Value: data}, nil
}

// createSession opens a session, failing on in-band errors too.
func (c *bridgeClient) createSession(ctx context.Context, id string) error {
	resp, err := c.api.CreateSession(ctx, &wire.CreateSessionRequest{SessionId: id})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("create session %s: %s", id, resp.Error)
	}
	return nil
}

func (c *bridgeClient) deleteSession(ctx context.Context, id string) error {
	resp, err := c.api.DeleteSession(ctx, &wire.DeleteSessionRequest{SessionId: id})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("delete session %s: %s", id, resp.Error)
	}
	return nil
}

// registerFloat registers an unconstrained float variable and returns
// its assigned id.
func (c *bridgeClient) registerFloat(ctx context.Context, sessionID, name string, initial float64) (string, error) {
	av, err := floatValue(initial)
	if err != nil {
		return "", err
	}
	resp, err := c.api.RegisterVariable(ctx, &wire.RegisterVariableRequest{
		SessionId:    sessionID,
		Name:         name,
		Type:         wire.VariableTypeFloat,
		InitialValue: av,
	})
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("register %s/%s: %s", sessionID, name, resp.Error)
	}
	return resp.VariableId, nil
}

// updateFloat applies one update and returns the new version.
func (c *bridgeClient) updateFloat(ctx context.Context, sessionID, identifier string, v float64) (int32, error) {
	av, err := floatValue(v)
	if err != nil {
		return 0, err
	}
	resp, err := c.api.UpdateVariable(ctx, &wire.UpdateVariableRequest{
		SessionId:  sessionID,
		Identifier: identifier,
		Value:      av,
	})
	if err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("update %s/%s: %s", sessionID, identifier, resp.Error)
	}
	return resp.Variable.Version, nil
}

func (c *bridgeClient) getVersion(ctx context.Context, sessionID, identifier string) (int32, error) {
	resp, err := c.api.GetVariable(ctx, &wire.GetVariableRequest{
		SessionId:  sessionID,
		Identifier: identifier,
	})
	if err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("get %s/%s: %s", sessionID, identifier, resp.Error)
	}
	return resp.Variable.Version, nil
}

func (c *bridgeClient) watch(ctx context.Context, sessionID string, identifiers []string) (wire.VarBridgeWatchVariablesClient, error) {
	return c.api.WatchVariables(ctx, &wire.WatchVariablesRequest{
		SessionId:   sessionID,
		Identifiers: identifiers,
	})
}
