package grpcx

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "whiteboard.Drawlog"

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health mirrors drawing log reachability into the standard gRPC health
// service.
type Health struct {
	srv      *health.Server
	store    Pinger
	interval time.Duration
	log      *slog.Logger
}

func NewHealth(store Pinger, interval time.Duration, log *slog.Logger) *Health {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Health{
		srv:      health.NewServer(),
		store:    store,
		interval: interval,
		log:      logger.Component(log, "grpc.health"),
	}
}

func (h *Health) Server() *health.Server { return h.srv }

// Check pings the store once and publishes the result.
func (h *Health) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("store ping failed", logger.Err(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
	return st
}

// Run re-checks every interval until ctx is done, then marks everything
// NOT_SERVING.
func (h *Health) Run(ctx context.Context) {
	h.Check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}
