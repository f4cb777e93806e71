package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service
// ServiceName is the fully qualified gRPC service name.
const ServiceName = "diagnoser.v1.Diagnoser"

// Full method names.
const (
	MethodQuery     = "/" + ServiceName + "/Query"
	MethodDiagnose  = "/" + ServiceName + "/Diagnose"
	MethodStructure = "/" + ServiceName + "/Structure"
)

// DiagnoserServer is the server API. Messages are structpb.Struct so no
// generated code is needed on either side.
type DiagnoserServer interface {
	// Query returns P(query | evidence) and its gate decision.
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Diagnose discretizes raw readings and then queries.
	Diagnose(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Structure describes the loaded network.
	Structure(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc is registered with grpc.Server by RegisterDiagnoserServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiagnoserServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: unary(MethodQuery, DiagnoserServer.Query)},
		{MethodName: "Diagnose", Handler: unary(MethodDiagnose, DiagnoserServer.Diagnose)},
		{MethodName: "Structure", Handler: unary(MethodStructure, DiagnoserServer.Structure)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "diagnoser/v1/diagnoser.proto",
}

// RegisterDiagnoserServer attaches srv to s.
func RegisterDiagnoserServer(s grpc.ServiceRegistrar, srv DiagnoserServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// #endregion service

type method func(DiagnoserServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, call method) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DiagnoserServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(DiagnoserServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
