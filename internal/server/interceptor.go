package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "x-request-id"

// UnaryLogging tags each call with a request ID (taken from the incoming
// metadata when present), logs its outcome and turns panics into Internal.
func UnaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, rid)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, rid))

		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc.request.panic", "req_id", rid, "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
			code := status.Code(err)
			attrs := []any{
				"req_id", rid,
				"method", info.FullMethod,
				"code", code.String(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			}
			switch code {
			case codes.OK:
				logger.Info("grpc.request.ok", attrs...)
			case codes.Internal, codes.Unknown:
				logger.Error("grpc.request.failed", append(attrs, "err", err)...)
			default:
				logger.Warn("grpc.request.failed", append(attrs, "err", err)...)
			}
		}()
		return handler(ctx, req)
	}
}
