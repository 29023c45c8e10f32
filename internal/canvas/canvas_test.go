package canvas

import (
	"bytes"
	"testing"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"

	"github.com/stretchr/testify/require"
)

func strokeCmd(color string, pts ...domain.Point) domain.DrawingCommand {
	return domain.StrokeCommand(domain.Stroke{Points: pts, Color: color, StrokeWidth: 4})
}

func TestReplay_Clear_Resets_Surface(t *testing.T) {
	req := require.New(t)
	log := []domain.DrawingCommand{
		strokeCmd("#111111", domain.Point{X: 1, Y: 1}),
		strokeCmd("#222222", domain.Point{X: 2, Y: 2}),
		domain.ClearCommand(),
		strokeCmd("#333333", domain.Point{X: 3, Y: 3}, domain.Point{X: 4, Y: 4}),
	}

	c := Replay(log)
	req.Len(c.Strokes(), 1)
	req.Equal("#333333", c.Strokes()[0].Color)

	// deterministic: same log, same picture
	req.Equal(c, Replay(log))
	// a log ending with a clear shows nothing
	req.True(Replay(append(log, domain.ClearCommand())).Empty())
	req.True(Replay(nil).Empty())
}

func TestReplay_Does_Not_Alias_Log(t *testing.T) {
	cmd := strokeCmd("#111111", domain.Point{X: 1, Y: 1})
	c := Replay([]domain.DrawingCommand{cmd})
	cmd.Stroke.Points[0].X = 99
	require.EqualValues(t, 1, c.Strokes()[0].Points[0].X)
}

func TestBounds(t *testing.T) {
	c := Replay([]domain.DrawingCommand{
		strokeCmd("#000", domain.Point{X: 10, Y: 20}, domain.Point{X: 30, Y: 5}),
	})
	minX, minY, maxX, maxY, ok := c.Bounds()
	require.True(t, ok)
	require.Equal(t, []float64{8, 3, 32, 22}, []float64{minX, minY, maxX, maxY})

	_, _, _, _, ok = Canvas{}.Bounds()
	require.False(t, ok)
}

func TestParseColor(t *testing.T) {
	cases := map[string][3]int{
		"#ff0000": {255, 0, 0},
		"#0A0B0C": {10, 11, 12},
		"#fff":    {255, 255, 255},
		"red":     {0, 0, 0},
		"":        {0, 0, 0},
		"#zzzzzz": {0, 0, 0},
	}
	for in, want := range cases {
		r, g, b := ParseColor(in)
		require.Equal(t, want, [3]int{r, g, b}, in)
	}
}

func TestWritePDF(t *testing.T) {
	req := require.New(t)
	c := Replay([]domain.DrawingCommand{
		strokeCmd("#ff0000", domain.Point{X: 0, Y: 0}, domain.Point{X: 5000, Y: 3000}),
		strokeCmd("#00ff00", domain.Point{X: 10, Y: 10}),
	})

	var buf bytes.Buffer
	req.NoError(WritePDF(&buf, c, PDFOptions{Title: "Room AB12CD"}))
	req.True(bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	var empty bytes.Buffer
	req.NoError(WritePDF(&empty, Canvas{}, PDFOptions{}))
	req.True(bytes.HasPrefix(empty.Bytes(), []byte("%PDF-")))
}
