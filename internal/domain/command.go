package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type CommandType string

const (
	CommandStroke CommandType = "stroke"
	CommandClear  CommandType = "clear"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is a finished line as the client reports it on draw-end.
type Stroke struct {
	Points      []Point `json:"points" validate:"required,min=1"`
	Color       string  `json:"color" validate:"required"`
	StrokeWidth float64 `json:"strokeWidth" validate:"gt=0"`
}

func (s Stroke) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStroke, err)
	}
	return nil
}

// DrawingCommand is one entry of a room's drawing log. Timestamp is zero
// until a store appends the command.
type DrawingCommand struct {
	Type      CommandType
	Stroke    *Stroke
	Timestamp time.Time
}

func StrokeCommand(s Stroke) DrawingCommand {
	return DrawingCommand{Type: CommandStroke, Stroke: &s}
}

func ClearCommand() DrawingCommand {
	return DrawingCommand{Type: CommandClear}
}

func (c DrawingCommand) Validate() error {
	switch c.Type {
	case CommandStroke:
		if c.Stroke == nil {
			return fmt.Errorf("%w: stroke command without payload", ErrInvalidStroke)
		}
		return c.Stroke.Validate()
	case CommandClear:
		return nil
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidCommand, c.Type)
	}
}

// Payload is the JSON document stored next to the command type.
func (c DrawingCommand) Payload() ([]byte, error) {
	if c.Type == CommandStroke && c.Stroke != nil {
		return json.Marshal(c.Stroke)
	}
	return []byte("{}"), nil
}

// DecodeCommand rebuilds a command from its stored type and payload.
func DecodeCommand(t CommandType, payload []byte, at time.Time) (DrawingCommand, error) {
	cmd := DrawingCommand{Type: t, Timestamp: at}
	switch t {
	case CommandStroke:
		var s Stroke
		if err := json.Unmarshal(payload, &s); err != nil {
			return DrawingCommand{}, fmt.Errorf("decode stroke payload: %w", err)
		}
		cmd.Stroke = &s
	case CommandClear:
	default:
		return DrawingCommand{}, fmt.Errorf("%w: type %q", ErrInvalidCommand, t)
	}
	return cmd, nil
}

// wireCommand is the shape clients already understand:
// {"type":"stroke","data":{...},"timestamp":"..."}.
type wireCommand struct {
	Type      CommandType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func (c DrawingCommand) MarshalJSON() ([]byte, error) {
	payload, err := c.Payload()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireCommand{Type: c.Type, Data: payload, Timestamp: c.Timestamp})
}

func (c *DrawingCommand) UnmarshalJSON(b []byte) error {
	var w wireCommand
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if len(w.Data) == 0 || string(w.Data) == "null" {
		w.Data = []byte("{}")
	}
	decoded, err := DecodeCommand(w.Type, w.Data, w.Timestamp)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}
