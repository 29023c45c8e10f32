package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cwrk-planet/whiteboard-service/config"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog/drawlogtest"
	"github.com/cwrk-planet/whiteboard-service/internal/storage"
	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	cases := map[string]config.Storage{
		"memory": {Driver: storage.DriverMemory},
		"sqlite": {Driver: storage.DriverSQLite, SQLite: config.SQLite{Path: filepath.Join(t.TempDir(), "wb.db")}},
		"badger": {Driver: storage.DriverBadger, Badger: config.Badger{InMemory: true}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()

			s, err := storage.Open(ctx, cfg, "whiteboard-test", logger.Discard())
			req.NoError(err)
			t.Cleanup(func() { _ = s.Close() })

			req.NoError(s.Ping(ctx))
			_, err = s.Append(ctx, "AB12CD", drawlogtest.Stroke("#000000"))
			req.NoError(err)
			cmds, err := s.ReadAll(ctx, "AB12CD")
			req.NoError(err)
			req.Len(cmds, 1)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), config.Storage{Driver: "redis"}, "", logger.Discard())
	require.ErrorContains(t, err, `unknown driver "redis"`)
}
