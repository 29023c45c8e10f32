package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/canvas"
	"github.com/cwrk-planet/whiteboard-service/internal/domain"
	"github.com/cwrk-planet/whiteboard-service/pkg/logger"
)

// RoomStore is the slice of drawlog.Store the HTTP use cases need.
type RoomStore interface {
	Touch(ctx context.Context, roomID string) (domain.Room, error)
	Get(ctx context.Context, roomID string) (domain.Room, error)
	ReadAll(ctx context.Context, roomID string) ([]domain.DrawingCommand, error)
}

// MemberCounter reports live connections per room.
type MemberCounter interface {
	MemberCount(roomID string) int
}

type RoomService struct {
	store   RoomStore
	members MemberCounter
	log     *slog.Logger
}

func NewRoomService(store RoomStore, members MemberCounter, log *slog.Logger) *RoomService {
	return &RoomService{store: store, members: members, log: logger.Component(log, "rooms")}
}

type JoinResult struct {
	RoomID       string
	CreatedAt    time.Time
	DrawingCount int
	Created      bool
}

type RoomDetails struct {
	RoomID       string
	CreatedAt    time.Time
	LastActivity time.Time
	DrawingData  []domain.DrawingCommand
	ActiveUsers  int
}

// Join pre-registers a room: it is created when absent, otherwise its
// activity time is refreshed.
func (s *RoomService) Join(ctx context.Context, code string) (JoinResult, error) {
	roomID, err := domain.NormalizeRoomCode(code)
	if err != nil {
		return JoinResult{}, err
	}
	room, err := s.store.Touch(ctx, roomID)
	if err != nil {
		return JoinResult{}, fmt.Errorf("store.Touch: %w", err)
	}
	if room.Created {
		s.log.Info("created a new room", logger.Room(roomID))
	} else {
		s.log.Debug("joined existing room", logger.Room(roomID))
	}
	return JoinResult{
		RoomID:       room.ID,
		CreatedAt:    room.CreatedAt,
		DrawingCount: room.DrawingCount,
		Created:      room.Created,
	}, nil
}

// Get returns the room with its full drawing log and refreshes its
// activity time. A code that cannot name a room is reported as not found.
func (s *RoomService) Get(ctx context.Context, code string) (RoomDetails, error) {
	roomID, err := domain.NormalizeRoomCode(code)
	if err != nil {
		return RoomDetails{}, domain.ErrRoomNotFound
	}
	if _, err := s.store.Get(ctx, roomID); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return RoomDetails{}, domain.ErrRoomNotFound
		}
		return RoomDetails{}, fmt.Errorf("store.Get: %w", err)
	}
	room, err := s.store.Touch(ctx, roomID)
	if err != nil {
		return RoomDetails{}, fmt.Errorf("store.Touch: %w", err)
	}
	cmds, err := s.store.ReadAll(ctx, roomID)
	if err != nil {
		return RoomDetails{}, fmt.Errorf("store.ReadAll: %w", err)
	}
	return RoomDetails{
		RoomID:       room.ID,
		CreatedAt:    room.CreatedAt,
		LastActivity: room.LastActivityAt,
		DrawingData:  cmds,
		ActiveUsers:  s.members.MemberCount(roomID),
	}, nil
}

// ExportPDF writes the replayed canvas of the room to w. It does not count
// as activity.
func (s *RoomService) ExportPDF(ctx context.Context, code string, w io.Writer) error {
	roomID, err := domain.NormalizeRoomCode(code)
	if err != nil {
		return domain.ErrRoomNotFound
	}
	if _, err := s.store.Get(ctx, roomID); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return domain.ErrRoomNotFound
		}
		return fmt.Errorf("store.Get: %w", err)
	}
	cmds, err := s.store.ReadAll(ctx, roomID)
	if err != nil {
		return fmt.Errorf("store.ReadAll: %w", err)
	}
	return canvas.WritePDF(w, canvas.Replay(cmds), canvas.PDFOptions{Title: "Room " + roomID})
}
