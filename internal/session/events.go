package session

import "github.com/cwrk-planet/whiteboard-service/internal/domain"

// Event names on the realtime channel.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventCursorMove  = "cursor-move"
	EventDrawStart   = "draw-start"
	EventDrawMove    = "draw-move"
	EventDrawEnd     = "draw-end"
	EventClearCanvas = "clear-canvas"

	EventUserCount    = "user-count"
	EventUserLeft     = "user-left"
	EventDrawingData  = "drawing-data"
	EventCursorUpdate = "cursor-update"
	EventError        = "error"
	EventWelcome      = "welcome"
)

// Messages carried by error events.
const (
	ErrMsgInvalidRoom = "invalid room code"
	ErrMsgJoinFailed  = "failed to join room"
	ErrMsgSaveFailed  = "failed to save stroke"
	ErrMsgClearFailed = "failed to clear canvas"
)

// ClientEvent is one inbound event of a connection. The set is closed:
// only the types below implement it.
type ClientEvent interface {
	clientEvent()
}

type JoinRoom struct {
	RoomID string
}

type LeaveRoom struct {
	RoomID string
}

type CursorMove struct {
	RoomID string
	X, Y   float64
}

type DrawStart struct {
	RoomID      string
	X, Y        float64
	Color       string
	StrokeWidth float64
}

type DrawMove struct {
	RoomID string
	X, Y   float64
}

// DrawEnd carries the finished stroke. A nil Stroke is a malformed event.
type DrawEnd struct {
	RoomID string
	Stroke *domain.Stroke
}

type ClearCanvas struct {
	RoomID string
}

// Disconnect is raised by the transport when a connection goes away.
type Disconnect struct{}

func (JoinRoom) clientEvent()    {}
func (LeaveRoom) clientEvent()   {}
func (CursorMove) clientEvent()  {}
func (DrawStart) clientEvent()   {}
func (DrawMove) clientEvent()    {}
func (DrawEnd) clientEvent()     {}
func (ClearCanvas) clientEvent() {}
func (Disconnect) clientEvent()  {}

// ServerEvent is one outbound event. Name is its wire event name.
type ServerEvent interface {
	Name() string
}

type UserCount struct {
	Count int
}

type UserLeft struct {
	ParticipantID string
}

// DrawingData is the replay sent to a joiner; Commands is never nil.
type DrawingData struct {
	Commands []domain.DrawingCommand
}

type CursorUpdate struct {
	ParticipantID string  `json:"participantId"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
}

type PeerDrawStart struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"strokeWidth"`
}

type PeerDrawMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PeerDrawEnd struct{}

type CanvasCleared struct{}

type Error struct {
	Message string
}

type Welcome struct {
	ParticipantID string `json:"participantId"`
}

func (UserCount) Name() string     { return EventUserCount }
func (UserLeft) Name() string      { return EventUserLeft }
func (DrawingData) Name() string   { return EventDrawingData }
func (CursorUpdate) Name() string  { return EventCursorUpdate }
func (PeerDrawStart) Name() string { return EventDrawStart }
func (PeerDrawMove) Name() string  { return EventDrawMove }
func (PeerDrawEnd) Name() string   { return EventDrawEnd }
func (CanvasCleared) Name() string { return EventClearCanvas }
func (Error) Name() string         { return EventError }
func (Welcome) Name() string       { return EventWelcome }

// Outbound addresses one event to a set of participants.
type Outbound struct {
	To    []string
	Event ServerEvent
}
