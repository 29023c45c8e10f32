package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/whiteboard-service/config"
	"github.com/cwrk-planet/whiteboard-service/internal/discovery"
	"github.com/cwrk-planet/whiteboard-service/internal/reaper"
	"github.com/cwrk-planet/whiteboard-service/internal/service"
	"github.com/cwrk-planet/whiteboard-service/internal/session"
	"github.com/cwrk-planet/whiteboard-service/internal/storage"
	grpcx "github.com/cwrk-planet/whiteboard-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/whiteboard-service/internal/transport/http"
	"github.com/cwrk-planet/whiteboard-service/internal/transport/ws"
	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"google.golang.org/grpc"
)

func main() {
	discover := flag.Bool("discover", false, "list whiteboard services on the local network and exit")
	flag.Parse()

	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})

	if *discover {
		found, err := discovery.Browse(context.Background(), cfg.Discovery.Service, 3*time.Second)
		if err != nil {
			log.Fatalf("discover: %v", err)
		}
		for _, addr := range found {
			fmt.Println(addr)
		}
		return
	}

	slog.Info("starting whiteboard-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "storage", cfg.Storage.Driver)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- storage ---
	store, err := storage.Open(ctx, cfg.Storage, cfg.Logging.Service, logger.L())
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("close storage", "err", err)
		}
	}()

	// --- session & services ---
	hub := ws.NewHub(logger.L())
	coord := session.NewCoordinator(store, logger.L(), session.WithSink(hub))
	roomSvc := service.NewRoomService(store, coord, logger.L())

	// --- WS Server ---
	wsServer := ws.NewServer(hub, coord, logger.L(), ws.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		SendBuffer:     cfg.Session.SendBuffer,
		WriteWait:      cfg.Session.WriteWait,
		PongWait:       cfg.Session.PongWait,
		MaxMessageSize: cfg.Session.MaxMessageSize,
	})

	// --- HTTP ---
	handler := httpx.NewHandler(roomSvc, store.Ping, logger.L())
	router := httpx.NewRouter(httpx.Deps{
		Handler:        handler,
		WS:             wsServer.HandleWS,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Log:            logger.L(),
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- reaper ---
	r := reaper.New(store, logger.L(), reaper.Config{
		Interval:  cfg.Reaper.Interval,
		Retention: cfg.Reaper.Retention,
	})
	go func() {
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("reaper stopped", "err", err)
		}
	}()

	// --- run servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPC.Addr != "" {
		health := grpcx.NewHealth(store, cfg.GRPC.HealthInterval, logger.L())
		go health.Run(ctx)
		grpcServer = grpcx.NewServer(health, logger.L())

		go func() {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				errCh <- err
				return
			}
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// --- mDNS ---
	var adv *discovery.Advertiser
	if cfg.Discovery.Enabled {
		port, err := discovery.PortFromAddr(cfg.HTTP.Addr)
		if err != nil {
			log.Fatalf("discovery: %v", err)
		}
		adv, err = discovery.Advertise(discovery.Config{
			Instance: cfg.Discovery.Instance,
			Service:  cfg.Discovery.Service,
			Port:     port,
			Info:     []string{cfg.Logging.Service, cfg.Logging.Version},
		}, logger.L())
		if err != nil {
			// the board still works without LAN discovery
			slog.Warn("mdns advertise failed", "err", err)
		}
	}

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	_ = adv.Shutdown()
	stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Error("http shutdown", "err", err)
	}
	// hijacked websocket connections are not tracked by http.Server
	hub.CloseAll()
	slog.Info("stopped")
}
