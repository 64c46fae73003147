// Package render draws chart geometry offline, for the xpchart command.
// The dashboard itself ships geometry to the browser and never calls it.
package render

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"xpdash/internal/chart"
)

// hoverScript applies the interaction table embedded in the document.
const hoverScript = `(function(){
var svg=document.documentElement;
var table=JSON.parse(svg.querySelector('script[type="application/json"]').textContent);
function apply(effects){effects.forEach(function(e){var n=svg.getElementById(e.target);if(!n)return;
if(e.attr==='visible'){n.style.display=e.value==='true'?'':'none';}else{n.setAttribute(e.attr,e.value);}});}
table.forEach(function(it){it.sources.forEach(function(id){var n=svg.getElementById(id);if(!n)return;
n.addEventListener('mouseenter',function(){apply(it.enter);});
n.addEventListener('mouseleave',function(){apply(it.leave);});});});
})();`

// SVG writes g as a standalone SVG document. Interactions are embedded as a
// JSON table and wired by a small inline script.
func SVG(w io.Writer, g *chart.Geometry) error {
	if g == nil || g.Root == nil {
		return fmt.Errorf("render svg: empty geometry")
	}
	bw := bufio.NewWriter(w)
	s := svgWriter{w: bw}

	width, height := chart.FormatCoord(g.Width), chart.FormatCoord(g.Height)
	s.printf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" font-family="system-ui, sans-serif">`, width, height, width, height)

	if len(g.Gradients) > 0 {
		s.printf("<defs>")
		for _, gr := range g.Gradients {
			s.gradient(gr)
		}
		s.printf("</defs>")
	}

	s.node(g.Root)

	if len(g.Interactions) > 0 {
		table, err := json.Marshal(g.Interactions)
		if err != nil {
			return fmt.Errorf("render svg: %w", err)
		}
		s.printf(`<script type="application/json">`)
		s.text(string(table))
		s.printf(`</script><script>`)
		s.text(hoverScript)
		s.printf(`</script>`)
	}
	s.printf("</svg>\n")

	if s.err != nil {
		return fmt.Errorf("render svg: %w", s.err)
	}
	return bw.Flush()
}

type svgWriter struct {
	w   *bufio.Writer
	err error
}

func (s *svgWriter) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func (s *svgWriter) text(body string) {
	if s.err != nil {
		return
	}
	s.err = xml.EscapeText(s.w, []byte(body))
}

func (s *svgWriter) attr(name, value string) {
	if value == "" {
		return
	}
	s.printf(` %s="`, name)
	s.text(value)
	s.printf(`"`)
}

func (s *svgWriter) num(name string, v float64) {
	s.printf(` %s="%s"`, name, chart.FormatCoord(v))
}

func (s *svgWriter) gradient(g chart.Gradient) {
	if g.Radial {
		s.printf(`<radialGradient`)
		s.attr("id", g.ID)
		s.printf(`>`)
	} else {
		s.printf(`<linearGradient`)
		s.attr("id", g.ID)
		s.printf(` x1="%s%%" y1="%s%%" x2="%s%%" y2="%s%%">`,
			chart.FormatCoord(g.X1*100), chart.FormatCoord(g.Y1*100),
			chart.FormatCoord(g.X2*100), chart.FormatCoord(g.Y2*100))
	}
	for _, st := range g.Stops {
		s.printf(`<stop offset="%s%%"`, chart.FormatCoord(st.Offset*100))
		s.attr("stop-color", st.Color)
		if st.Opacity > 0 {
			s.num("stop-opacity", st.Opacity)
		}
		s.printf(`/>`)
	}
	if g.Radial {
		s.printf(`</radialGradient>`)
	} else {
		s.printf(`</linearGradient>`)
	}
}

func (s *svgWriter) style(st chart.Style) {
	s.attr("stroke", st.Stroke)
	if st.StrokeWidth > 0 {
		s.num("stroke-width", st.StrokeWidth)
	}
	s.attr("fill", st.Fill)
	if st.Opacity > 0 {
		s.num("opacity", st.Opacity)
	}
	if st.FontSize > 0 {
		s.num("font-size", st.FontSize)
	}
	s.attr("font-weight", st.FontWeight)
	s.attr("text-anchor", st.Anchor)
	if st.Baseline == "middle" {
		s.attr("dominant-baseline", "middle")
	}
	var css []string
	if st.Cursor != "" {
		css = append(css, "cursor:"+st.Cursor)
	}
	if st.Hidden {
		css = append(css, "display:none", "pointer-events:none")
	}
	s.attr("style", strings.Join(css, ";"))
}

func (s *svgWriter) node(n *chart.Node) {
	tag := svgTag(n.Kind)
	s.printf("<%s", tag)
	s.attr("id", n.ID)
	s.attr("data-hover", n.Hover)

	switch n.Kind {
	case chart.KindLine:
		s.num("x1", n.X1)
		s.num("y1", n.Y1)
		s.num("x2", n.X2)
		s.num("y2", n.Y2)
	case chart.KindPath:
		s.attr("d", n.D())
		if n.Style.Stroke != "" {
			s.attr("stroke-linecap", "round")
			s.attr("stroke-linejoin", "round")
		}
	case chart.KindPolygon:
		pts := make([]string, len(n.Points))
		for i, p := range n.Points {
			pts[i] = chart.FormatCoord(p.X) + "," + chart.FormatCoord(p.Y)
		}
		s.attr("points", strings.Join(pts, " "))
	case chart.KindCircle:
		s.num("cx", n.CX)
		s.num("cy", n.CY)
		s.num("r", n.R)
	case chart.KindRect:
		s.num("x", n.X)
		s.num("y", n.Y)
		s.num("width", n.W)
		s.num("height", n.H)
		if n.RX > 0 {
			s.num("rx", n.RX)
		}
	case chart.KindText:
		s.num("x", n.X)
		s.num("y", n.Y)
	}
	s.style(n.Style)

	switch {
	case n.Kind == chart.KindText:
		s.printf(">")
		s.text(n.Text)
		s.printf("</%s>", tag)
	case len(n.Children) > 0:
		s.printf(">")
		for _, c := range n.Children {
			s.node(c)
		}
		s.printf("</%s>", tag)
	default:
		s.printf("/>")
	}
}

func svgTag(k chart.Kind) string {
	switch k {
	case chart.KindGroup:
		return "g"
	case chart.KindLine, chart.KindPath, chart.KindCircle, chart.KindPolygon, chart.KindText, chart.KindRect:
		return string(k)
	default:
		return "g"
	}
}
