package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog/drawlogtest"
	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"github.com/stretchr/testify/require"
)

type fixedMembers map[string]int

func (m fixedMembers) MemberCount(roomID string) int { return m[roomID] }

func newService(t *testing.T) (*RoomService, *drawlog.MemoryStore, *drawlogtest.Clock) {
	t.Helper()
	clock := drawlogtest.NewClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	store := drawlog.NewMemoryStore(drawlog.WithClock(clock.Now))
	return NewRoomService(store, fixedMembers{"AB12CD": 2}, logger.Discard()), store, clock
}

func TestRoomService_Join(t *testing.T) {
	req := require.New(t)
	svc, store, clock := newService(t)
	ctx := context.Background()

	res, err := svc.Join(ctx, " ab12cd ")
	req.NoError(err)
	req.Equal("AB12CD", res.RoomID)
	req.True(res.Created)
	req.Zero(res.DrawingCount)

	_, err = store.Append(ctx, "AB12CD", drawlogtest.Stroke("#000000"))
	req.NoError(err)
	clock.Advance(time.Minute)

	res, err = svc.Join(ctx, "AB12CD")
	req.NoError(err)
	req.False(res.Created)
	req.Equal(1, res.DrawingCount)

	for _, bad := range []string{"", "abc", "ABCDEFGHI", "AB 12"} {
		_, err = svc.Join(ctx, bad)
		req.ErrorIs(err, domain.ErrInvalidRoomCode, bad)
	}
}

func TestRoomService_Get(t *testing.T) {
	req := require.New(t)
	svc, store, clock := newService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "AB12CD")
	req.ErrorIs(err, domain.ErrRoomNotFound)
	_, err = svc.Get(ctx, "!!")
	req.ErrorIs(err, domain.ErrRoomNotFound)

	_, err = svc.Join(ctx, "AB12CD")
	req.NoError(err)
	_, err = store.Append(ctx, "AB12CD", drawlogtest.Stroke("#ff0000"))
	req.NoError(err)
	clock.Advance(time.Hour)

	got, err := svc.Get(ctx, "ab12cd")
	req.NoError(err)
	req.Equal("AB12CD", got.RoomID)
	req.Len(got.DrawingData, 1)
	req.Equal(2, got.ActiveUsers)
	req.True(clock.Now().Equal(got.LastActivity), "lookup refreshes activity")
}

func TestRoomService_ExportPDF(t *testing.T) {
	req := require.New(t)
	svc, store, _ := newService(t)
	ctx := context.Background()

	var buf bytes.Buffer
	req.ErrorIs(svc.ExportPDF(ctx, "AB12CD", &buf), domain.ErrRoomNotFound)

	_, err := store.Append(ctx, "AB12CD", drawlogtest.Stroke("#ff0000", domain.Point{X: 1, Y: 1}, domain.Point{X: 50, Y: 40}))
	req.NoError(err)
	req.NoError(svc.ExportPDF(ctx, "AB12CD", &buf))
	req.True(bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

type brokenStore struct{ drawlog.MemoryStore }

func (b *brokenStore) Touch(context.Context, string) (domain.Room, error) {
	return domain.Room{}, errors.Join(domain.ErrStore, errors.New("down"))
}

func TestRoomService_Join_Store_Failure(t *testing.T) {
	svc := NewRoomService(&brokenStore{}, fixedMembers{}, logger.Discard())
	_, err := svc.Join(context.Background(), "AB12CD")
	require.ErrorIs(t, err, domain.ErrStore)
}
