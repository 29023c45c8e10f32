// Package discovery announces the service on the local network over mDNS so
// clients on the same LAN can find a board without typing an address.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"github.com/hashicorp/mdns"
)

const DefaultService = "_whiteboard._tcp"

type Config struct {
	// Instance defaults to the host name.
	Instance string
	Service  string
	Port     int
	Info     []string
}

type Advertiser struct {
	server *mdns.Server
	log    *slog.Logger
}

func Advertise(cfg Config, log *slog.Logger) (*Advertiser, error) {
	if cfg.Service == "" {
		cfg.Service = DefaultService
	}
	if cfg.Instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		cfg.Instance = host
	}

	service, err := mdns.NewMDNSService(cfg.Instance, cfg.Service, "", "", cfg.Port, nil, cfg.Info)
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}

	log = logger.Component(log, "discovery")
	log.Info("mdns advertising",
		slog.String("instance", cfg.Instance),
		slog.String("service", cfg.Service),
		slog.Int("port", cfg.Port))
	return &Advertiser{server: server, log: log}, nil
}

func (a *Advertiser) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	a.log.Info("mdns stopped")
	return a.server.Shutdown()
}

// Browse lists host:port of every instance answering within timeout.
func Browse(ctx context.Context, service string, timeout time.Duration) ([]string, error) {
	if service == "" {
		service = DefaultService
	}
	entries := make(chan *mdns.ServiceEntry, 16)
	var found []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			found = append(found, net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port)))
		}
	}()

	err := mdns.QueryContext(ctx, &mdns.QueryParam{
		Service:     service,
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	})
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("mdns query: %w", err)
	}
	return found, nil
}

// PortFromAddr extracts the port of a listen address such as ":8080".
func PortFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return port, nil
}
