package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"xpdash/internal/chart"
)

// PNG rasterizes g through go-chart's raster renderer. Hidden subtrees such
// as tooltips are skipped and gradient paints fall back to their first stop.
func PNG(w io.Writer, g *chart.Geometry) error {
	if g == nil || g.Root == nil {
		return fmt.Errorf("render png: empty geometry")
	}
	width, height := int(math.Ceil(g.Width)), int(math.Ceil(g.Height))
	r, err := gochart.PNG(width, height)
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	font, err := gochart.GetDefaultFont()
	if err != nil {
		return fmt.Errorf("render png: load font: %w", err)
	}
	r.SetDPI(72)
	r.SetFont(font)

	// background
	r.SetFillColor(drawing.ColorWhite)
	r.MoveTo(0, 0)
	r.LineTo(width, 0)
	r.LineTo(width, height)
	r.LineTo(0, height)
	r.Close()
	r.Fill()

	p := painter{r: r, g: g}
	g.Walk(p.draw)

	if err := r.Save(w); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	return nil
}

type painter struct {
	r gochart.Renderer
	g *chart.Geometry
}

func (p painter) draw(n *chart.Node) bool {
	if n.Style.Hidden {
		return false
	}
	r := p.r
	r.ResetStyle()
	stroke, hasStroke := p.paint(n.Style.Stroke, n.Style.Opacity)
	fill, hasFill := p.paint(n.Style.Fill, n.Style.Opacity)
	width := n.Style.StrokeWidth
	if width == 0 {
		width = 1
	}

	switch n.Kind {
	case chart.KindLine:
		if !hasStroke {
			return true
		}
		r.SetStrokeColor(stroke)
		r.SetStrokeWidth(width)
		r.MoveTo(px(n.X1), px(n.Y1))
		r.LineTo(px(n.X2), px(n.Y2))
		r.Stroke()

	case chart.KindPath, chart.KindPolygon:
		if len(n.Points) == 0 {
			return true
		}
		r.MoveTo(px(n.Points[0].X), px(n.Points[0].Y))
		for _, pt := range n.Points[1:] {
			r.LineTo(px(pt.X), px(pt.Y))
		}
		if n.Closed || n.Kind == chart.KindPolygon {
			r.Close()
		}
		finish(r, fill, hasFill, stroke, hasStroke, width)

	case chart.KindCircle:
		r.Circle(n.R, px(n.CX), px(n.CY))
		finish(r, fill, hasFill, stroke, hasStroke, width)

	case chart.KindRect:
		x0, y0, x1, y1 := px(n.X), px(n.Y), px(n.X+n.W), px(n.Y+n.H)
		r.MoveTo(x0, y0)
		r.LineTo(x1, y0)
		r.LineTo(x1, y1)
		r.LineTo(x0, y1)
		r.Close()
		finish(r, fill, hasFill, stroke, hasStroke, width)

	case chart.KindText:
		if n.Text == "" {
			return true
		}
		if !hasFill {
			fill = drawing.ColorBlack
		}
		size := n.Style.FontSize
		if size == 0 {
			size = 12
		}
		r.SetFontColor(fill)
		r.SetFontSize(size)
		box := r.MeasureText(n.Text)
		x, y := px(n.X), px(n.Y)
		switch n.Style.Anchor {
		case "middle":
			x -= box.Width() / 2
		case "end":
			x -= box.Width()
		}
		if n.Style.Baseline == "middle" {
			y += box.Height() / 2
		}
		r.Text(n.Text, x, y)
	}
	return true
}

func finish(r gochart.Renderer, fill drawing.Color, hasFill bool, stroke drawing.Color, hasStroke bool, width float64) {
	switch {
	case hasFill && hasStroke:
		r.SetFillColor(fill)
		r.SetStrokeColor(stroke)
		r.SetStrokeWidth(width)
		r.FillStroke()
	case hasFill:
		r.SetFillColor(fill)
		r.Fill()
	case hasStroke:
		r.SetStrokeColor(stroke)
		r.SetStrokeWidth(width)
		r.Stroke()
	}
}

// paint resolves a style color. Gradient references use their first stop.
func (p painter) paint(val string, opacity float64) (drawing.Color, bool) {
	val = strings.TrimSpace(val)
	alpha := 1.0
	if opacity > 0 {
		alpha = opacity
	}
	if id, ok := strings.CutPrefix(val, "url(#"); ok {
		grad, found := p.g.Gradient(strings.TrimSuffix(id, ")"))
		if !found || len(grad.Stops) == 0 {
			return drawing.Color{}, false
		}
		stop := grad.Stops[0]
		val = stop.Color
		if stop.Opacity > 0 {
			alpha *= stop.Opacity
		}
	}
	c, ok := parseColor(val)
	if !ok {
		return drawing.Color{}, false
	}
	return c.WithAlpha(uint8(math.Round(alpha * float64(c.A)))), true
}

func parseColor(val string) (drawing.Color, bool) {
	switch val {
	case "", "none", "transparent":
		return drawing.Color{}, false
	}
	hex, ok := strings.CutPrefix(val, "#")
	if !ok || (len(hex) != 3 && len(hex) != 6) {
		return drawing.Color{}, false
	}
	return drawing.ColorFromHex(hex), true
}

func px(v float64) int {
	return int(math.Round(v))
}
