package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// defaultCallTimeout bounds unary calls that arrive without a deadline.
const defaultCallTimeout = 10 * time.Second

func UnaryServerInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	log = logger.Component(log, "grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultCallTimeout)
			defer cancel()
		}
		defer finish(ctx, log, "unary", info.FullMethod, time.Now(), &err)

		return handler(ctx, req)
	}
}

// StreamServerInterceptor covers Health.Watch.
func StreamServerInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	log = logger.Component(log, "grpc")
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer finish(ss.Context(), log, "stream", info.FullMethod, time.Now(), &err)

		return handler(srv, ss)
	}
}

// finish must be deferred directly so that recover sees the handler's panic.
func finish(ctx context.Context, log *slog.Logger, kind, method string, start time.Time, err *error) {
	if r := recover(); r != nil {
		log.ErrorContext(ctx, "grpc "+kind+" panic",
			slog.String("method", method),
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())))
		*err = status.Error(codes.Internal, "internal server error")
	}

	attrs := []any{
		slog.String("method", method),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	}
	if *err != nil {
		attrs = append(attrs, slog.String("code", status.Code(*err).String()), logger.Err(*err))
	}
	log.DebugContext(ctx, "grpc "+kind, attrs...)
}
