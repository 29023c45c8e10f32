// Package grpcx serves the gRPC side of the service: the standard health
// protocol behind logging and recovery interceptors.
package grpcx

import (
	"log/slog"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func NewServer(h *Health, log *slog.Logger) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(log)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(log)),
	)
	healthpb.RegisterHealthServer(s, h.Server())
	return s
}
