// Package session turns inbound client events into membership changes,
// drawing log writes and the outbound events that follow from them.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog"
	"github.com/cwrk-planet/whiteboard-service/internal/membership"
	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"github.com/samber/lo"
)

type Option func(*Coordinator)

// Sink receives outbound events while the lock that ordered them is still
// held. Deliver must not block and must not call back into the Coordinator.
type Sink interface {
	Deliver(out []Outbound)
}

// WithSink makes every handler push its events to sink as they are
// produced, so recipients observe them in the order state changed.
func WithSink(sink Sink) Option {
	return func(c *Coordinator) {
		c.sink = sink
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator owns the participant table and the membership registry.
// mu guards both and is never held across store I/O; store calls for one
// room are serialised by a per-room lock instead, so rooms never contend.
// Lock order is room lock, then mu.
type Coordinator struct {
	mu           sync.Mutex
	registry     *membership.Registry
	participants map[string]*domain.Participant

	store drawlog.Store
	rooms *roomLocks
	sink  Sink
	log   *slog.Logger
	now   func() time.Time
}

func NewCoordinator(store drawlog.Store, log *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:     membership.NewRegistry(),
		participants: make(map[string]*domain.Participant),
		store:        store,
		rooms:        newRoomLocks(),
		log:          logger.Component(log, "session"),
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect registers a new live connection. Events from ids that were never
// connected are ignored.
func (c *Coordinator) Connect(participantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.participants[participantID] = &domain.Participant{ID: participantID, LastSeenAt: c.now()}
}

// Disconnect leaves the current room, if any, and forgets the participant.
// Calling it twice is harmless.
func (c *Coordinator) Disconnect(ctx context.Context, participantID string) []Outbound {
	return c.Handle(ctx, participantID, Disconnect{})
}

// MemberCount reports how many live connections sit in roomID.
func (c *Coordinator) MemberCount(roomID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.MemberCount(roomID)
}

// Handle applies one event and returns what has to be sent, in order. With
// a sink configured the same events have already been delivered through it
// and the result is informational only.
func (c *Coordinator) Handle(ctx context.Context, participantID string, ev ClientEvent) []Outbound {
	log := c.log.With(logger.Participant(participantID))

	switch e := ev.(type) {
	case JoinRoom:
		return c.join(ctx, log, participantID, e)
	case LeaveRoom:
		return c.leaveRoom(log, participantID, e)
	case CursorMove:
		return c.cursorMove(log, participantID, e)
	case DrawStart:
		return c.relay(log, participantID, e.RoomID, PeerDrawStart{X: e.X, Y: e.Y, Color: e.Color, StrokeWidth: e.StrokeWidth})
	case DrawMove:
		return c.relay(log, participantID, e.RoomID, PeerDrawMove{X: e.X, Y: e.Y})
	case DrawEnd:
		return c.drawEnd(ctx, log, participantID, e)
	case ClearCanvas:
		return c.clearCanvas(ctx, log, participantID, e)
	case Disconnect:
		return c.disconnect(log, participantID)
	default:
		log.Warn("unknown client event", slog.String("type", fmt.Sprintf("%T", ev)))
		return nil
	}
}

func (c *Coordinator) join(ctx context.Context, log *slog.Logger, participantID string, e JoinRoom) []Outbound {
	roomID, err := domain.NormalizeRoomCode(e.RoomID)
	if err != nil {
		log.Debug("join rejected", slog.String("raw_room", e.RoomID), logger.Err(err))
		return c.emit(toOne(participantID, Error{Message: ErrMsgInvalidRoom}))
	}
	log = log.With(logger.Room(roomID))

	var out []Outbound
	c.mu.Lock()
	p, ok := c.touch(participantID)
	if !ok {
		c.mu.Unlock()
		log.Debug("join from unknown connection ignored")
		return nil
	}
	if p.CurrentRoom != "" && p.CurrentRoom != roomID {
		out = append(out, c.leaveLocked(p)...)
	}
	count := c.registry.Join(participantID, roomID)
	p.CurrentRoom = roomID
	out = append(out, Outbound{To: c.registry.Members(roomID), Event: UserCount{Count: count}})
	c.emit(out...)
	c.mu.Unlock()

	log.Info("participant joined", slog.Int("members", count))

	// the snapshot is delivered under the room lock so that no clear or
	// stroke of this room can be queued to the joiner ahead of it
	unlock := c.rooms.lock(roomID)
	defer unlock()
	cmds, err := c.loadRoom(ctx, roomID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, _ := c.registry.RoomOf(participantID); cur != roomID {
		log.Debug("joiner left before the snapshot was ready")
		return out
	}
	if err != nil {
		// membership stays: live drawing keeps working without history
		log.Error("load room failed", logger.Err(err))
		return append(out, c.emit(toOne(participantID, Error{Message: ErrMsgJoinFailed}))...)
	}
	return append(out, c.emit(toOne(participantID, DrawingData{Commands: cmds}))...)
}

func (c *Coordinator) loadRoom(ctx context.Context, roomID string) ([]domain.DrawingCommand, error) {
	if _, err := c.store.Touch(ctx, roomID); err != nil {
		return nil, err
	}
	return c.store.ReadAll(ctx, roomID)
}

func (c *Coordinator) leaveRoom(log *slog.Logger, participantID string, e LeaveRoom) []Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.touch(participantID)
	if !ok {
		return nil
	}
	if _, joined := c.currentRoom(p, e.RoomID); !joined {
		log.Debug("leave for a room not joined ignored", slog.String("raw_room", e.RoomID))
		return nil
	}
	return c.emit(c.leaveLocked(p)...)
}

func (c *Coordinator) disconnect(log *slog.Logger, participantID string) []Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.participants[participantID]
	if !ok {
		return nil
	}
	out := c.leaveLocked(p)
	delete(c.participants, participantID)
	log.Debug("participant disconnected")
	return c.emit(out...)
}

// leaveLocked removes p from its room and builds the notifications for the
// members left behind. Nothing is sent when the room is now empty. c.mu must
// be held.
func (c *Coordinator) leaveLocked(p *domain.Participant) []Outbound {
	roomID, remaining, ok := c.registry.Leave(p.ID)
	p.CurrentRoom = ""
	if !ok {
		return nil
	}
	c.log.Info("participant left",
		logger.Participant(p.ID), logger.Room(roomID), slog.Int("members", remaining))
	if remaining == 0 {
		return nil
	}
	members := c.registry.Members(roomID)
	return []Outbound{
		{To: members, Event: UserCount{Count: remaining}},
		{To: members, Event: UserLeft{ParticipantID: p.ID}},
	}
}

func (c *Coordinator) cursorMove(log *slog.Logger, participantID string, e CursorMove) []Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.touch(participantID)
	if !ok {
		return nil
	}
	roomID, joined := c.currentRoom(p, e.RoomID)
	if !joined {
		log.Debug("cursor-move outside a joined room ignored")
		return nil
	}
	p.LastCursor = &domain.Point{X: e.X, Y: e.Y}
	return c.emit(c.toOthersLocked(roomID, participantID, CursorUpdate{ParticipantID: participantID, X: e.X, Y: e.Y})...)
}

// relay forwards live stroke progress. It is never persisted.
func (c *Coordinator) relay(log *slog.Logger, participantID, claimedRoom string, ev ServerEvent) []Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.touch(participantID)
	if !ok {
		return nil
	}
	roomID, joined := c.currentRoom(p, claimedRoom)
	if !joined {
		log.Debug(ev.Name() + " outside a joined room ignored")
		return nil
	}
	return c.emit(c.toOthersLocked(roomID, participantID, ev)...)
}

func (c *Coordinator) drawEnd(ctx context.Context, log *slog.Logger, participantID string, e DrawEnd) []Outbound {
	roomID, ok := c.joinedRoom(participantID, e.RoomID)
	if !ok {
		log.Debug("draw-end outside a joined room ignored")
		return nil
	}
	log = log.With(logger.Room(roomID))
	if e.Stroke == nil {
		log.Warn("draw-end without stroke data dropped")
		return nil
	}
	if err := e.Stroke.Validate(); err != nil {
		log.Warn("invalid stroke dropped", logger.Err(err))
		return nil
	}

	unlock := c.rooms.lock(roomID)
	defer unlock()
	_, err := c.store.Append(ctx, roomID, domain.StrokeCommand(*e.Stroke))
	if err != nil {
		log.Error("save stroke failed", logger.Err(err))
		return c.emit(toOne(participantID, Error{Message: ErrMsgSaveFailed}))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emit(c.toOthersLocked(roomID, participantID, PeerDrawEnd{})...)
}

func (c *Coordinator) clearCanvas(ctx context.Context, log *slog.Logger, participantID string, e ClearCanvas) []Outbound {
	roomID, ok := c.joinedRoom(participantID, e.RoomID)
	if !ok {
		log.Debug("clear-canvas outside a joined room ignored")
		return nil
	}
	log = log.With(logger.Room(roomID))

	unlock := c.rooms.lock(roomID)
	defer unlock()
	_, err := c.store.Clear(ctx, roomID)
	if err != nil {
		log.Error("clear canvas failed", logger.Err(err))
		return c.emit(toOne(participantID, Error{Message: ErrMsgClearFailed}))
	}
	log.Info("canvas cleared")

	c.mu.Lock()
	defer c.mu.Unlock()
	members := c.registry.Members(roomID)
	if len(members) == 0 {
		return nil
	}
	return c.emit(Outbound{To: members, Event: CanvasCleared{}})
}

// joinedRoom is currentRoom under the lock, for handlers that go on to do
// store I/O.
func (c *Coordinator) joinedRoom(participantID, claimed string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.touch(participantID)
	if !ok {
		return "", false
	}
	return c.currentRoom(p, claimed)
}

// touch refreshes LastSeenAt of a known participant. c.mu must be held.
func (c *Coordinator) touch(participantID string) (*domain.Participant, bool) {
	p, ok := c.participants[participantID]
	if ok {
		p.LastSeenAt = c.now()
	}
	return p, ok
}

// currentRoom returns p's room when p is joined and claimed names that same
// room. Every client event has to name its room; an empty claim never
// matches.
func (c *Coordinator) currentRoom(p *domain.Participant, claimed string) (string, bool) {
	if !p.Joined() {
		return "", false
	}
	roomID, err := domain.NormalizeRoomCode(claimed)
	if err != nil || roomID != p.CurrentRoom {
		return "", false
	}
	return roomID, true
}

func (c *Coordinator) toOthersLocked(roomID, sender string, ev ServerEvent) []Outbound {
	others := lo.Without(c.registry.Members(roomID), sender)
	if len(others) == 0 {
		return nil
	}
	return []Outbound{{To: others, Event: ev}}
}

// emit hands out to the sink, if any, and returns it unchanged. Callers hold
// the lock that ordered the events.
func (c *Coordinator) emit(out ...Outbound) []Outbound {
	if c.sink != nil && len(out) > 0 {
		c.sink.Deliver(out)
	}
	return out
}

func toOne(participantID string, ev ServerEvent) Outbound {
	return Outbound{To: []string{participantID}, Event: ev}
}
