package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer builds a gRPC server with the orders service, the standard
// health service (reported SERVING) and reflection for grpcurl.
func NewGRPCServer(svc OrdersServiceServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryLogging(logger)),
		grpc.MaxRecvMsgSize(32 << 20), // two images plus framing
	}, opts...)
	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(s)
	RegisterOrdersServiceServer(s, svc)
	return s, hs
}
