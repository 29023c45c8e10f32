// Package canvas rebuilds the visible state of a room from its drawing log.
package canvas

import (
	"math"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
)

// Canvas is what a client shows after replaying a log.
type Canvas struct {
	strokes []domain.Stroke
}

// Replay applies cmds in order. A clear wipes everything drawn before it.
// The result depends only on the log, never on live draw-move traffic.
func Replay(cmds []domain.DrawingCommand) Canvas {
	var c Canvas
	for _, cmd := range cmds {
		switch cmd.Type {
		case domain.CommandClear:
			c.strokes = nil
		case domain.CommandStroke:
			if cmd.Stroke == nil {
				continue
			}
			s := *cmd.Stroke
			s.Points = append([]domain.Point(nil), cmd.Stroke.Points...)
			c.strokes = append(c.strokes, s)
		}
	}
	return c
}

func (c Canvas) Strokes() []domain.Stroke {
	return c.strokes
}

func (c Canvas) Empty() bool {
	return len(c.strokes) == 0
}

// Bounds is the box around every point, widened by half of each stroke's
// width. ok is false on an empty canvas.
func (c Canvas) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, s := range c.strokes {
		pad := s.StrokeWidth / 2
		for _, p := range s.Points {
			minX = math.Min(minX, p.X-pad)
			minY = math.Min(minY, p.Y-pad)
			maxX = math.Max(maxX, p.X+pad)
			maxY = math.Max(maxY, p.Y+pad)
			ok = true
		}
	}
	if !ok {
		return 0, 0, 0, 0, false
	}
	return minX, minY, maxX, maxY, true
}
