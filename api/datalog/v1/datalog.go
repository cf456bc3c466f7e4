package datalogv1

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "datalog.v1.Datalog"

type RecordRequest struct {
	Payload []byte `json:"payload"`
	// TimestampMs is stored as given, zero included. Nil stamps the record
	// with the server clock.
	TimestampMs *int64 `json:"timestamp_ms,omitempty"`
}

type RecordResponse struct {
	TimestampMs int64 `json:"timestamp_ms"`
}

type EraseRequest struct{}

type EraseResponse struct{}

type QueryRequest struct {
	// Account defaults to the authenticated caller when empty.
	Account string `json:"account,omitempty"`
	Filter  string `json:"filter,omitempty"`
	Limit   int32  `json:"limit,omitempty"`
}

type Record struct {
	TimestampMs int64  `json:"timestamp_ms"`
	Payload     []byte `json:"payload"`
}

type QueryResponse struct {
	Account string   `json:"account"`
	Records []Record `json:"records"`
}

// DatalogServer is implemented by the server side of the service.
type DatalogServer interface {
	Record(context.Context, *RecordRequest) (*RecordResponse, error)
	Erase(context.Context, *EraseRequest) (*EraseResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
}

// RegisterDatalogServer registers srv on s.
func RegisterDatalogServer(s grpc.ServiceRegistrar, srv DatalogServer) {
	s.RegisterService(&Datalog_ServiceDesc, srv)
}

func handler[Req any](call func(DatalogServer, context.Context, *Req) (any, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(DatalogServer), ctx, req.(*Req))
		})
	}
}

// Datalog_ServiceDesc describes datalog.v1.Datalog.
var Datalog_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Record", Handler: handler(func(s DatalogServer, ctx context.Context, in *RecordRequest) (any, error) {
			return s.Record(ctx, in)
		}, "Record")},
		{MethodName: "Erase", Handler: handler(func(s DatalogServer, ctx context.Context, in *EraseRequest) (any, error) {
			return s.Erase(ctx, in)
		}, "Erase")},
		{MethodName: "Query", Handler: handler(func(s DatalogServer, ctx context.Context, in *QueryRequest) (any, error) {
			return s.Query(ctx, in)
		}, "Query")},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "datalog/v1/datalog.json",
}

// DatalogClient calls datalog.v1.Datalog.
type DatalogClient interface {
	Record(ctx context.Context, in *RecordRequest, opts ...grpc.CallOption) (*RecordResponse, error)
	Erase(ctx context.Context, in *EraseRequest, opts ...grpc.CallOption) (*EraseResponse, error)
	Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error)
}

type datalogClient struct {
	cc grpc.ClientConnInterface
}

// NewDatalogClient returns a client that always uses the JSON codec.
func NewDatalogClient(cc grpc.ClientConnInterface) DatalogClient {
	return &datalogClient{cc: cc}
}

func (c *datalogClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *datalogClient) Record(ctx context.Context, in *RecordRequest, opts ...grpc.CallOption) (*RecordResponse, error) {
	out := new(RecordResponse)
	if err := c.invoke(ctx, "Record", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *datalogClient) Erase(ctx context.Context, in *EraseRequest, opts ...grpc.CallOption) (*EraseResponse, error) {
	out := new(EraseResponse)
	if err := c.invoke(ctx, "Erase", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *datalogClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	out := new(QueryResponse)
	if err := c.invoke(ctx, "Query", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
