package drawlog

import (
	"context"
	"sync"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
)

type memoryRoom struct {
	meta domain.Room
	log  []domain.DrawingCommand
}

// MemoryStore keeps everything in process memory. History is lost on
// restart; it backs tests and the "memory" storage driver.
type MemoryStore struct {
	mu    sync.Mutex
	now   Clock
	rooms map[string]*memoryRoom
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	s := Apply(opts)
	return &MemoryStore{now: s.Clock, rooms: make(map[string]*memoryRoom)}
}

func (m *MemoryStore) room(roomID string, now time.Time) *memoryRoom {
	r, ok := m.rooms[roomID]
	if !ok {
		r = &memoryRoom{meta: domain.Room{ID: roomID, CreatedAt: now, LastActivityAt: now}}
		m.rooms[roomID] = r
	}
	return r
}

func (m *MemoryStore) Append(_ context.Context, roomID string, cmd domain.DrawingCommand) (domain.DrawingCommand, error) {
	if err := CheckAppend(roomID, cmd); err != nil {
		return domain.DrawingCommand{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	r := m.room(roomID, now)
	last := time.Time{}
	if n := len(r.log); n > 0 {
		last = r.log[n-1].Timestamp
	}
	cmd = cloneCommand(cmd)
	cmd.Timestamp = NextTimestamp(now, last)
	r.log = append(r.log, cmd)
	r.meta.LastActivityAt = now
	return cloneCommand(cmd), nil
}

func (m *MemoryStore) Clear(_ context.Context, roomID string) (domain.DrawingCommand, error) {
	if roomID == "" {
		return domain.DrawingCommand{}, domain.ErrInvalidRoomCode
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	r := m.room(roomID, now)
	last := time.Time{}
	if n := len(r.log); n > 0 {
		last = r.log[n-1].Timestamp
	}
	cmd := domain.ClearCommand()
	cmd.Timestamp = NextTimestamp(now, last)
	r.log = []domain.DrawingCommand{cmd}
	r.meta.LastActivityAt = now
	return cmd, nil
}

func (m *MemoryStore) ReadAll(_ context.Context, roomID string) ([]domain.DrawingCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return []domain.DrawingCommand{}, nil
	}
	out := make([]domain.DrawingCommand, 0, len(r.log))
	for _, c := range r.log {
		out = append(out, cloneCommand(c))
	}
	return out, nil
}

func (m *MemoryStore) Touch(_ context.Context, roomID string) (domain.Room, error) {
	if roomID == "" {
		return domain.Room{}, domain.ErrInvalidRoomCode
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	_, existed := m.rooms[roomID]
	r := m.room(roomID, now)
	r.meta.LastActivityAt = now

	meta := r.meta
	meta.DrawingCount = len(r.log)
	meta.Created = !existed
	return meta, nil
}

func (m *MemoryStore) Get(_ context.Context, roomID string) (domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	meta := r.meta
	meta.DrawingCount = len(r.log)
	return meta, nil
}

func (m *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.rooms {
		if r.meta.LastActivityAt.Before(cutoff) {
			delete(m.rooms, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func cloneCommand(c domain.DrawingCommand) domain.DrawingCommand {
	if c.Stroke != nil {
		s := *c.Stroke
		s.Points = append([]domain.Point(nil), c.Stroke.Points...)
		c.Stroke = &s
	}
	return c
}
