package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cwrk-planet/whiteboard-service/internal/drawlog"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog/drawlogtest"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, clock drawlog.Clock) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "whiteboard.db"), drawlog.WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStore(t *testing.T) {
	drawlogtest.RunSuite(t, func(t *testing.T, clock drawlog.Clock) drawlog.Store {
		return newTestStore(t, clock)
	})
}

func TestMigrateIsRepeatable(t *testing.T) {
	store := newTestStore(t, drawlog.SystemClock)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
}

func TestBuildDSN(t *testing.T) {
	require.Equal(t, "file:board.db?_pragma=busy_timeout=5000&_pragma=foreign_keys=ON", buildDSN("board.db"))
	require.Equal(t, "file:board.db?mode=rwc&_pragma=busy_timeout=5000&_pragma=foreign_keys=ON", buildDSN("sqlite://file:board.db?mode=rwc"))
}
