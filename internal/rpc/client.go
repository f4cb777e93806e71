package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
)

// #region client-struct
// Client calls a remote Diagnoser.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to a Diagnoser server.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn wraps an existing connection, e.g. a bufconn in tests.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client owns it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region query
// Query asks for P(query | ev). An empty query uses the server's default.
func (c *Client) Query(ctx context.Context, query string, ev infer.Evidence) (QueryResult, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"query":    structpb.NewStringValue(query),
		"evidence": evidenceValue(ev),
	}}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodQuery, req, resp); err != nil {
		return QueryResult{}, fmt.Errorf("query rpc: %w", err)
	}
	return decodeQueryResult(resp), nil
}

// #endregion query

// #region diagnose
// Diagnose sends raw readings for discretization and diagnosis.
func (c *Client) Diagnose(ctx context.Context, r signals.Reading) (DiagnoseResult, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":     structpb.NewStringValue(r.ID),
		"values": readingsValue(r.Values),
	}}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodDiagnose, req, resp); err != nil {
		return DiagnoseResult{}, fmt.Errorf("diagnose rpc: %w", err)
	}
	ev, err := decodeEvidence(resp.GetFields()["evidence"])
	if err != nil {
		return DiagnoseResult{}, fmt.Errorf("diagnose rpc: %w", err)
	}
	return DiagnoseResult{
		ID:          resp.GetFields()["id"].GetStringValue(),
		Evidence:    ev,
		QueryResult: decodeQueryResult(resp),
	}, nil
}

// #endregion diagnose

// #region structure
// Structure fetches the remote network's description.
func (c *Client) Structure(ctx context.Context) (StructureResult, error) {
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodStructure, &structpb.Struct{}, resp); err != nil {
		return StructureResult{}, fmt.Errorf("structure rpc: %w", err)
	}
	f := resp.GetFields()

	out := StructureResult{
		Name:  f["name"].GetStringValue(),
		Order: decodeStrings(f["topological_order"]),
		DOT:   f["dot"].GetStringValue(),
	}
	for _, v := range f["variables"].GetListValue().GetValues() {
		vf := v.GetStructValue().GetFields()
		out.Variables = append(out.Variables, VariableInfo{
			Name:        vf["name"].GetStringValue(),
			Cardinality: int(vf["cardinality"].GetNumberValue()),
			Parents:     decodeStrings(vf["parents"]),
		})
	}
	for _, e := range f["edges"].GetListValue().GetValues() {
		ef := e.GetStructValue().GetFields()
		out.Edges = append(out.Edges, network.Edge{
			Parent: ef["parent"].GetStringValue(),
			Child:  ef["child"].GetStringValue(),
		})
	}
	return out, nil
}

// #endregion structure
