package main

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/nickyhof/DuckDesk"
	"github.com/nickyhof/DuckDesk/core"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec lets clients call the console service with content subtype
// "json" instead of protobuf.
type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// ConsoleServer is the gRPC form of the query, schema and database endpoints.
type ConsoleServer interface {
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	Schema(context.Context, *SchemaRequest) (*SchemaResponse, error)
	Databases(context.Context, *DatabasesRequest) (*DatabasesResponse, error)
}

const consoleServiceName = "duckdesk.Console"

func registerConsoleServer(s *grpc.Server, srv ConsoleServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: consoleServiceName,
		HandlerType: (*ConsoleServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Query", Handler: unaryHandler("Query", ConsoleServer.Query)},
			{MethodName: "Schema", Handler: unaryHandler("Schema", ConsoleServer.Schema)},
			{MethodName: "Databases", Handler: unaryHandler("Databases", ConsoleServer.Databases)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "duckdesk",
	}, srv)
}

func unaryHandler[Req, Resp any](method string, call func(ConsoleServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConsoleServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + consoleServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConsoleServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type consoleService struct {
	instance *DuckDesk.Instance
}

func newGRPCServer(instance *DuckDesk.Instance) *grpc.Server {
	gs := grpc.NewServer()
	registerConsoleServer(gs, &consoleService{instance: instance})
	return gs
}

func (s *consoleService) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	outcome, err := s.instance.Query(ctx, req.Database, req.Query)
	if err != nil {
		return nil, grpcError(err)
	}
	return &QueryResponse{
		Success:           true,
		Data:              outcome.Rows,
		Columns:           outcome.Columns,
		AttachedDatabases: outcome.Attached,
		Message:           outcome.Message,
	}, nil
}

func (s *consoleService) Schema(ctx context.Context, req *SchemaRequest) (*SchemaResponse, error) {
	description, err := s.instance.Schema(ctx, req.Database)
	if err != nil {
		return nil, grpcError(err)
	}
	return &SchemaResponse{Success: true, Data: description}, nil
}

func (s *consoleService) Databases(ctx context.Context, _ *DatabasesRequest) (*DatabasesResponse, error) {
	return &DatabasesResponse{Success: true, Data: s.instance.Databases()}, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrExecution), errors.Is(err, core.ErrEngineOpen):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
