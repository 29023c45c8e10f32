// Package drawlogtest holds the behaviour every drawlog.Store must share.
// Each backend runs RunSuite from its own tests.
package drawlogtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog"

	"github.com/stretchr/testify/require"
)

// Clock is a settable clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC().Truncate(time.Microsecond)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC().Truncate(time.Microsecond)
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory opens a fresh, empty store driven by clock.
type Factory func(t *testing.T, clock drawlog.Clock) drawlog.Store

func Stroke(color string, points ...domain.Point) domain.DrawingCommand {
	if len(points) == 0 {
		points = []domain.Point{{X: 1, Y: 1}}
	}
	return domain.StrokeCommand(domain.Stroke{Points: points, Color: color, StrokeWidth: 4})
}

func RunSuite(t *testing.T, newStore Factory) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	open := func(t *testing.T) (drawlog.Store, *Clock) {
		clock := NewClock(start)
		s := newStore(t, clock.Now)
		t.Cleanup(func() { _ = s.Close() })
		return s, clock
	}

	t.Run("ReadAllUnknownRoomIsEmpty", func(t *testing.T) {
		s, _ := open(t)
		cmds, err := s.ReadAll(context.Background(), "NOPE")
		require.NoError(t, err)
		require.NotNil(t, cmds)
		require.Empty(t, cmds)
	})

	t.Run("AppendKeepsArrivalOrder", func(t *testing.T) {
		req := require.New(t)
		s, clock := open(t)
		ctx := context.Background()

		// same instant for all three: ties are broken by arrival
		for _, color := range []string{"#111111", "#222222", "#333333"} {
			got, err := s.Append(ctx, "ROOM1", Stroke(color))
			req.NoError(err)
			req.True(clock.Now().Equal(got.Timestamp))
		}
		clock.Advance(time.Second)
		_, err := s.Append(ctx, "ROOM1", Stroke("#444444", domain.Point{X: 1, Y: 2}, domain.Point{X: 3, Y: 4}))
		req.NoError(err)

		cmds, err := s.ReadAll(ctx, "ROOM1")
		req.NoError(err)
		req.Len(cmds, 4)
		for i, want := range []string{"#111111", "#222222", "#333333", "#444444"} {
			req.Equal(domain.CommandStroke, cmds[i].Type)
			req.Equal(want, cmds[i].Stroke.Color)
		}
		req.Equal([]domain.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, cmds[3].Stroke.Points)
		req.EqualValues(4, cmds[3].Stroke.StrokeWidth)
		assertNonDecreasing(t, cmds)
	})

	t.Run("AppendClampsBackwardClock", func(t *testing.T) {
		req := require.New(t)
		s, clock := open(t)
		ctx := context.Background()

		first, err := s.Append(ctx, "ROOM1", Stroke("#111111"))
		req.NoError(err)
		clock.Advance(-time.Minute)
		second, err := s.Append(ctx, "ROOM1", Stroke("#222222"))
		req.NoError(err)
		req.False(second.Timestamp.Before(first.Timestamp))
	})

	t.Run("AppendRejectsClearAndInvalidStroke", func(t *testing.T) {
		req := require.New(t)
		s, _ := open(t)
		ctx := context.Background()

		_, err := s.Append(ctx, "ROOM1", domain.ClearCommand())
		req.ErrorIs(err, domain.ErrInvalidCommand)

		bad := domain.StrokeCommand(domain.Stroke{Color: "#000000", StrokeWidth: 1})
		_, err = s.Append(ctx, "ROOM1", bad)
		req.ErrorIs(err, domain.ErrInvalidStroke)

		cmds, err := s.ReadAll(ctx, "ROOM1")
		req.NoError(err)
		req.Empty(cmds)
	})

	t.Run("ClearTruncatesHistory", func(t *testing.T) {
		req := require.New(t)
		s, clock := open(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := s.Append(ctx, "ROOM1", Stroke("#111111"))
			req.NoError(err)
		}
		clock.Advance(time.Second)
		cleared, err := s.Clear(ctx, "ROOM1")
		req.NoError(err)
		req.Equal(domain.CommandClear, cleared.Type)

		cmds, err := s.ReadAll(ctx, "ROOM1")
		req.NoError(err)
		req.Len(cmds, 1)
		req.Equal(domain.CommandClear, cmds[0].Type)
		req.True(cleared.Timestamp.Equal(cmds[0].Timestamp))

		// strokes drawn after the clear come strictly after it
		_, err = s.Append(ctx, "ROOM1", Stroke("#222222"))
		req.NoError(err)
		cmds, err = s.ReadAll(ctx, "ROOM1")
		req.NoError(err)
		req.Len(cmds, 2)
		req.Equal(domain.CommandClear, cmds[0].Type)
		req.Equal(domain.CommandStroke, cmds[1].Type)
		assertNonDecreasing(t, cmds)

		room, err := s.Get(ctx, "ROOM1")
		req.NoError(err)
		req.Equal(2, room.DrawingCount)
	})

	t.Run("ClearIsScopedToOneRoom", func(t *testing.T) {
		req := require.New(t)
		s, _ := open(t)
		ctx := context.Background()

		_, err := s.Append(ctx, "ROOM1", Stroke("#111111"))
		req.NoError(err)
		_, err = s.Append(ctx, "ROOM2", Stroke("#222222"))
		req.NoError(err)
		_, err = s.Clear(ctx, "ROOM1")
		req.NoError(err)

		cmds, err := s.ReadAll(ctx, "ROOM2")
		req.NoError(err)
		req.Len(cmds, 1)
		req.Equal("#222222", cmds[0].Stroke.Color)
	})

	t.Run("TouchCreatesThenRefreshes", func(t *testing.T) {
		req := require.New(t)
		s, clock := open(t)
		ctx := context.Background()

		_, err := s.Get(ctx, "ROOM1")
		req.ErrorIs(err, domain.ErrRoomNotFound)

		created, err := s.Touch(ctx, "ROOM1")
		req.NoError(err)
		req.True(created.Created)
		req.Equal("ROOM1", created.ID)
		req.Zero(created.DrawingCount)
		req.True(start.Equal(created.CreatedAt))

		clock.Advance(time.Hour)
		_, err = s.Append(ctx, "ROOM1", Stroke("#111111"))
		req.NoError(err)
		clock.Advance(time.Hour)

		touched, err := s.Touch(ctx, "ROOM1")
		req.NoError(err)
		req.False(touched.Created)
		req.Equal(1, touched.DrawingCount)
		req.True(start.Equal(touched.CreatedAt))
		req.True(clock.Now().Equal(touched.LastActivityAt))

		got, err := s.Get(ctx, "ROOM1")
		req.NoError(err)
		req.True(clock.Now().Equal(got.LastActivityAt))
	})

	t.Run("AppendCreatesMissingRoom", func(t *testing.T) {
		req := require.New(t)
		s, _ := open(t)
		ctx := context.Background()

		_, err := s.Append(ctx, "ROOM9", Stroke("#111111"))
		req.NoError(err)
		room, err := s.Get(ctx, "ROOM9")
		req.NoError(err)
		req.Equal(1, room.DrawingCount)
	})

	t.Run("DeleteOlderThanReapsIdleRooms", func(t *testing.T) {
		req := require.New(t)
		s, clock := open(t)
		ctx := context.Background()

		// idle room: last activity 25h before "now"
		_, err := s.Append(ctx, "IDLE", Stroke("#111111"))
		req.NoError(err)
		clock.Advance(24 * time.Hour)
		// active room: touched 1h before "now"
		_, err = s.Touch(ctx, "BUSY")
		req.NoError(err)
		clock.Advance(time.Hour)

		n, err := s.DeleteOlderThan(ctx, clock.Now().Add(-24*time.Hour))
		req.NoError(err)
		req.EqualValues(1, n)

		_, err = s.Get(ctx, "IDLE")
		req.ErrorIs(err, domain.ErrRoomNotFound)
		cmds, err := s.ReadAll(ctx, "IDLE")
		req.NoError(err)
		req.Empty(cmds)

		_, err = s.Get(ctx, "BUSY")
		req.NoError(err)

		// a reaped room comes back fresh
		again, err := s.Touch(ctx, "IDLE")
		req.NoError(err)
		req.True(again.Created)
		req.Zero(again.DrawingCount)
	})

	t.Run("ConcurrentAppendsAreAllKept", func(t *testing.T) {
		req := require.New(t)
		s, _ := open(t)
		ctx := context.Background()

		const writers, perWriter = 8, 5
		var wg sync.WaitGroup
		errs := make(chan error, writers*perWriter)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					if _, err := s.Append(ctx, "ROOM1", Stroke(fmt.Sprintf("#%06d", w*100+i))); err != nil {
						errs <- err
					}
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			req.NoError(err)
		}

		cmds, err := s.ReadAll(ctx, "ROOM1")
		req.NoError(err)
		req.Len(cmds, writers*perWriter)
		assertNonDecreasing(t, cmds)
	})

	t.Run("Ping", func(t *testing.T) {
		s, _ := open(t)
		require.NoError(t, s.Ping(context.Background()))
	})
}

func assertNonDecreasing(t *testing.T, cmds []domain.DrawingCommand) {
	t.Helper()
	for i := 1; i < len(cmds); i++ {
		require.Falsef(t, cmds[i].Timestamp.Before(cmds[i-1].Timestamp),
			"command %d at %s precedes command %d at %s", i, cmds[i].Timestamp, i-1, cmds[i-1].Timestamp)
	}
}
