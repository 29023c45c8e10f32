package drawlog_test

import (
	"testing"

	"github.com/cwrk-planet/whiteboard-service/internal/drawlog"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog/drawlogtest"
)

func TestMemoryStore(t *testing.T) {
	drawlogtest.RunSuite(t, func(t *testing.T, clock drawlog.Clock) drawlog.Store {
		return drawlog.NewMemoryStore(drawlog.WithClock(clock))
	})
}
