package canvas

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// pxToMM assumes a 96 dpi browser canvas.
const pxToMM = 25.4 / 96

type PDFOptions struct {
	Title string
	// Margin around the drawing in mm; 10 when zero.
	Margin float64
}

// WritePDF renders c on one landscape A4 page. Drawings larger than the page
// are scaled down to fit, smaller ones keep their size.
func WritePDF(w io.Writer, c Canvas, opts PDFOptions) error {
	margin := opts.Margin
	if margin <= 0 {
		margin = 10
	}

	p := gofpdf.New("L", "mm", "A4", "")
	if opts.Title != "" {
		p.SetTitle(opts.Title, true)
	}
	p.SetAutoPageBreak(false, 0)
	p.AddPage()
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	pageW, pageH := p.GetPageSize()
	top := margin
	if opts.Title != "" {
		p.SetFont("Helvetica", "", 10)
		p.Text(margin, margin, opts.Title)
		top += 5
	}

	if minX, minY, maxX, maxY, ok := c.Bounds(); ok {
		scale := pxToMM
		availW, availH := pageW-2*margin, pageH-top-margin
		if dw, dh := (maxX-minX)*scale, (maxY-minY)*scale; dw > availW || dh > availH {
			scale *= math.Min(availW/dw, availH/dh)
		}
		at := func(x, y float64) (float64, float64) {
			return margin + (x-minX)*scale, top + (y-minY)*scale
		}

		for _, s := range c.Strokes() {
			r, g, b := ParseColor(s.Color)
			p.SetDrawColor(r, g, b)
			p.SetFillColor(r, g, b)
			width := math.Max(s.StrokeWidth*scale, 0.1)
			p.SetLineWidth(width)

			if len(s.Points) == 1 {
				x, y := at(s.Points[0].X, s.Points[0].Y)
				p.Circle(x, y, width/2, "F")
				continue
			}
			for i := 1; i < len(s.Points); i++ {
				x1, y1 := at(s.Points[i-1].X, s.Points[i-1].Y)
				x2, y2 := at(s.Points[i].X, s.Points[i].Y)
				p.Line(x1, y1, x2, y2)
			}
		}
	}

	if err := p.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// ParseColor reads #rgb and #rrggbb. Anything else is black.
func ParseColor(s string) (r, g, b int) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
