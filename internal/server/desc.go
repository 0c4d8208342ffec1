package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "canteen.orders.v1.OrdersService"

// OrdersServiceServer is the server API. Requests and responses are
// well-known protobuf types so no generated code is needed.
type OrdersServiceServer interface {
	ScanReceipt(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	ExtractText(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	CreateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListOrders(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	Verify(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	MarkMismatch(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Rescan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AttachProof(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	DeleteOrder(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ExportOrders(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
	IngestDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ OrdersServiceServer = (*OrdersService)(nil)

// unary adapts a typed method into a grpc.MethodDesc.
func unary[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](name string, call func(OrdersServiceServer, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(OrdersServiceServer)
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(impl, ctx, req.(PReq))
			})
		},
	}
}

var OrdersServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrdersServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ScanReceipt", OrdersServiceServer.ScanReceipt),
		unary("ExtractText", OrdersServiceServer.ExtractText),
		unary("CreateOrder", OrdersServiceServer.CreateOrder),
		unary("GetOrder", OrdersServiceServer.GetOrder),
		unary("ListOrders", OrdersServiceServer.ListOrders),
		unary("Verify", OrdersServiceServer.Verify),
		unary("MarkMismatch", OrdersServiceServer.MarkMismatch),
		unary("Rescan", OrdersServiceServer.Rescan),
		unary("AttachProof", OrdersServiceServer.AttachProof),
		unary("DeleteOrder", OrdersServiceServer.DeleteOrder),
		unary("ExportOrders", OrdersServiceServer.ExportOrders),
		unary("IngestDirectory", OrdersServiceServer.IngestDirectory),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "canteen/orders/v1/orders.proto",
}

func RegisterOrdersServiceServer(s grpc.ServiceRegistrar, srv OrdersServiceServer) {
	s.RegisterService(&OrdersServiceDesc, srv)
}

// Client is a thin typed client for OrdersService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out proto.Message, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func invokeAs[T proto.Message](ctx context.Context, c *Client, method string, in proto.Message, out T, opts []grpc.CallOption) (T, error) {
	if err := c.invoke(ctx, method, in, out, opts...); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (c *Client) ScanReceipt(ctx context.Context, image []byte, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invokeAs(ctx, c, "ScanReceipt", wrapperspb.Bytes(image), new(structpb.Struct), opts)
}

func (c *Client) ExtractText(ctx context.Context, text string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invokeAs(ctx, c, "ExtractText", wrapperspb.String(text), new(structpb.Struct), opts)
}

func (c *Client) CreateOrder(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invokeAs(ctx, c, "CreateOrder", req, new(structpb.Struct), opts)
}

func (c *Client) GetOrder(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invokeAs(ctx, c, "GetOrder", wrapperspb.String(id), new(structpb.Struct), opts)
}

func (c *Client) ListOrders(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invokeAs(ctx, c, "ListOrders", req, new(structpb.ListValue), opts)
}

func (c *Client) Verify(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invokeAs(ctx, c, "Verify", wrapperspb.String(id), new(structpb.Struct), opts)
}

func (c *Client) MarkMismatch(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invokeAs(ctx, c, "MarkMismatch", wrapperspb.String(id), new(structpb.Struct), opts)
}

func (c *Client) Rescan(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invokeAs(ctx, c, "Rescan", req, new(structpb.Struct), opts)
}

func (c *Client) AttachProof(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "AttachProof", req, new(emptypb.Empty), opts...)
}

func (c *Client) DeleteOrder(ctx context.Context, id string, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "DeleteOrder", wrapperspb.String(id), new(emptypb.Empty), opts...)
}

func (c *Client) ExportOrders(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.invoke(ctx, "ExportOrders", req, out, opts...); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

func (c *Client) IngestDirectory(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invokeAs(ctx, c, "IngestDirectory", req, new(structpb.Struct), opts)
}
