// Package storage opens the drawing log backend selected in config.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/whiteboard-service/config"
	"github.com/cwrk-planet/whiteboard-service/internal/badgerdb"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog"
	"github.com/cwrk-planet/whiteboard-service/internal/postgres"
	"github.com/cwrk-planet/whiteboard-service/internal/sqlite"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
)

// Open returns a migrated, ready store. The caller owns Close.
func Open(ctx context.Context, cfg config.Storage, appName string, log *slog.Logger, opts ...drawlog.Option) (drawlog.Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		log.Info("storage: in-memory drawing log, history is lost on restart")
		return drawlog.NewMemoryStore(opts...), nil

	case DriverPostgres:
		s, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
			ApplicationName: appName,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("storage: postgres: %w", err)
		}
		log.Info("storage: postgres ready")
		return s, nil

	case DriverSQLite:
		s, err := sqlite.NewStore(cfg.SQLite.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("storage: sqlite: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("storage: sqlite migrate: %w", err)
		}
		log.Info("storage: sqlite ready", slog.String("path", cfg.SQLite.Path))
		return s, nil

	case DriverBadger:
		s, err := badgerdb.Open(badgerdb.Options{
			Dir:      cfg.Badger.Dir,
			InMemory: cfg.Badger.InMemory,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("storage: badger: %w", err)
		}
		log.Info("storage: badger ready", slog.String("dir", cfg.Badger.Dir), slog.Bool("in_memory", cfg.Badger.InMemory))
		return s, nil

	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
