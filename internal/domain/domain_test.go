package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRoomCode(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "ab12cd", want: "AB12CD"},
		{in: "  wxyz ", want: "WXYZ"},
		{in: "ABCDEFGH", want: "ABCDEFGH"},
		{in: "abc", wantErr: true},
		{in: "ABCDEFGHI", wantErr: true},
		{in: "AB-12", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeRoomCode(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidRoomCode)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestStroke_Validate(t *testing.T) {
	req := require.New(t)

	ok := Stroke{Points: []Point{{X: 1, Y: 2}}, Color: "#000000", StrokeWidth: 2}
	req.NoError(ok.Validate())

	noPoints := Stroke{Points: []Point{}, Color: "#000000", StrokeWidth: 2}
	req.ErrorIs(noPoints.Validate(), ErrInvalidStroke)

	zeroWidth := Stroke{Points: []Point{{X: 1, Y: 2}}, Color: "#000000"}
	req.ErrorIs(zeroWidth.Validate(), ErrInvalidStroke)

	noColor := Stroke{Points: []Point{{X: 1, Y: 2}}, StrokeWidth: 1}
	req.ErrorIs(noColor.Validate(), ErrInvalidStroke)

	req.ErrorIs(DrawingCommand{Type: CommandStroke}.Validate(), ErrInvalidStroke)
	req.NoError(ClearCommand().Validate())
	req.ErrorIs(DrawingCommand{Type: "erase"}.Validate(), ErrInvalidCommand)
}

func TestDrawingCommand_WireShape(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	stroke := StrokeCommand(Stroke{Points: []Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, Color: "#ff0000", StrokeWidth: 4})
	stroke.Timestamp = at
	b, err := json.Marshal(stroke)
	req.NoError(err)
	req.JSONEq(`{"type":"stroke","data":{"points":[{"x":1,"y":2},{"x":3,"y":4}],"color":"#ff0000","strokeWidth":4},"timestamp":"2026-01-02T03:04:05Z"}`, string(b))

	cleared := ClearCommand()
	cleared.Timestamp = at
	b, err = json.Marshal(cleared)
	req.NoError(err)
	req.JSONEq(`{"type":"clear","data":{},"timestamp":"2026-01-02T03:04:05Z"}`, string(b))

	var decoded DrawingCommand
	req.NoError(json.Unmarshal([]byte(`{"type":"clear","data":null,"timestamp":"2026-01-02T03:04:05Z"}`), &decoded))
	req.Equal(CommandClear, decoded.Type)
	req.Nil(decoded.Stroke)
	req.True(at.Equal(decoded.Timestamp))
}
