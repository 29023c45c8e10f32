package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
	"github.com/cwrk-planet/whiteboard-service/internal/session"
)

var ErrUnknownEvent = errors.New("unknown event")

// Frame is one text message on the socket, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type cursorMovePayload struct {
	RoomID string  `json:"roomId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type drawStartPayload struct {
	RoomID      string  `json:"roomId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"strokeWidth"`
}

type drawMovePayload struct {
	RoomID string  `json:"roomId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type drawEndPayload struct {
	RoomID     string         `json:"roomId"`
	StrokeData *domain.Stroke `json:"strokeData"`
}

// Decode turns an inbound frame into a client event.
func Decode(raw []byte) (session.ClientEvent, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Event {
	case session.EventJoinRoom:
		var roomID string
		if err := decodeData(f, &roomID); err != nil {
			return nil, err
		}
		return session.JoinRoom{RoomID: roomID}, nil

	case session.EventLeaveRoom:
		var roomID string
		if err := decodeData(f, &roomID); err != nil {
			return nil, err
		}
		return session.LeaveRoom{RoomID: roomID}, nil

	case session.EventCursorMove:
		var p cursorMovePayload
		if err := decodeData(f, &p); err != nil {
			return nil, err
		}
		return session.CursorMove{RoomID: p.RoomID, X: p.X, Y: p.Y}, nil

	case session.EventDrawStart:
		var p drawStartPayload
		if err := decodeData(f, &p); err != nil {
			return nil, err
		}
		return session.DrawStart{RoomID: p.RoomID, X: p.X, Y: p.Y, Color: p.Color, StrokeWidth: p.StrokeWidth}, nil

	case session.EventDrawMove:
		var p drawMovePayload
		if err := decodeData(f, &p); err != nil {
			return nil, err
		}
		return session.DrawMove{RoomID: p.RoomID, X: p.X, Y: p.Y}, nil

	case session.EventDrawEnd:
		var p drawEndPayload
		if err := decodeData(f, &p); err != nil {
			return nil, err
		}
		return session.DrawEnd{RoomID: p.RoomID, Stroke: p.StrokeData}, nil

	case session.EventClearCanvas:
		var roomID string
		if err := decodeData(f, &roomID); err != nil {
			return nil, err
		}
		return session.ClearCanvas{RoomID: roomID}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
}

func decodeData(f Frame, dst any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("decode %s: missing data", f.Event)
	}
	if err := json.Unmarshal(f.Data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", f.Event, err)
	}
	return nil
}

// Encode renders a server event as a frame. Counts, ids and error texts go
// out as bare values; draw-end and clear-canvas carry no data.
func Encode(ev session.ServerEvent) ([]byte, error) {
	var data any
	switch e := ev.(type) {
	case session.UserCount:
		data = e.Count
	case session.UserLeft:
		data = e.ParticipantID
	case session.DrawingData:
		cmds := e.Commands
		if cmds == nil {
			cmds = []domain.DrawingCommand{}
		}
		data = cmds
	case session.Error:
		data = e.Message
	case session.PeerDrawEnd, session.CanvasCleared:
		return json.Marshal(Frame{Event: ev.Name()})
	default:
		data = ev
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Name(), err)
	}
	return json.Marshal(Frame{Event: ev.Name(), Data: b})
}
