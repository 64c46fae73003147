package chart

import (
	"math"
	"strconv"

	"xpdash/internal/core"
)

const (
	colorAxis        = "#cbd5e1"
	colorGrid        = "#f1f5f9"
	colorMuted       = "#475569"
	colorLabel       = "#334155"
	colorAccent      = "#3b82f6"
	colorAccentAlt   = "#8b5cf6"
	colorTooltipBg   = "#1e293b"
	colorTooltipText = "#ffffff"
	colorTooltipSub  = "#93c5fd"
	colorPlaceholder = "#64748b"
)

// LineOptions tunes the XP line chart. Zero fields take the defaults.
type LineOptions struct {
	YSteps     int    // gridline intervals, default 5 (six lines)
	LabelEvery int    // month label stride, default 3
	Title      string // default "Cumulative XP Over Time"
	IDPrefix   string // default "xp"
}

const (
	pointRadius      = 5
	pointRadiusHover = 7
	emptyLineText    = "No XP data available"
)

func (o LineOptions) withDefaults() LineOptions {
	if o.YSteps <= 0 {
		o.YSteps = 5
	}
	if o.LabelEvery <= 0 {
		o.LabelEvery = 3
	}
	if o.Title == "" {
		o.Title = "Cumulative XP Over Time"
	}
	if o.IDPrefix == "" {
		o.IDPrefix = "xp"
	}
	return o
}

// BuildLineChart lays out the cumulative XP series with default options.
func BuildLineChart(buckets []core.MonthlyBucket, vp core.ViewportSpec) (*Geometry, error) {
	return LineOptions{}.Build(buckets, vp)
}

// Build lays out buckets as a line and area chart inside vp.
//
// Point i sits at x = left + i*plotW/max(n-1, 1) and its height is the
// cumulative total scaled against the last bucket's cumulative total. Every
// marker has a hover group that enlarges it and reveals its tooltip. Tooltips
// are emitted after all markers. An empty series yields an Empty geometry
// holding only a placeholder text.
func (o LineOptions) Build(buckets []core.MonthlyBucket, vp core.ViewportSpec) (*Geometry, error) {
	o = o.withDefaults()
	vp, err := lineViewport(vp)
	if err != nil {
		return nil, err
	}
	p := o.IDPrefix

	if len(buckets) == 0 {
		root := Group(p+"-chart",
			Text(p+"-empty", vp.Width/2, vp.Height/2, emptyLineText, Style{
				Fill: colorPlaceholder, FontSize: 14, Anchor: "middle", Baseline: "middle",
			}),
		)
		return &Geometry{Width: vp.Width, Height: vp.Height, Empty: true, Root: root}, nil
	}

	pad := vp.Padding
	plotW := vp.Width - pad.Left - pad.Right
	plotH := vp.Height - pad.Top - pad.Bottom
	baseline := pad.Top + plotH
	n := len(buckets)
	domainMax := float64(buckets[n-1].CumulativeTotal)
	spacing := plotW / float64(max(n-1, 1))

	pts := make([]Point, n)
	for i, b := range buckets {
		pts[i] = Point{
			X: pad.Left + float64(i)*spacing,
			Y: baseline - Linear(float64(b.CumulativeTotal), domainMax, plotH),
		}
	}

	lineGrad := Gradient{
		ID: p + "-line-gradient", X1: 0, Y1: 0, X2: 1, Y2: 0,
		Stops: []GradientStop{{Offset: 0, Color: colorAccent}, {Offset: 1, Color: colorAccentAlt}},
	}
	areaGrad := Gradient{
		ID: p + "-area-gradient", X1: 0, Y1: 0, X2: 0, Y2: 1,
		Stops: []GradientStop{{Offset: 0, Color: colorAccent, Opacity: 0.5}, {Offset: 1, Color: colorAccentAlt, Opacity: 0.1}},
	}

	grid := Group(p + "-grid")
	for i := 0; i <= o.YSteps; i++ {
		frac := float64(i) / float64(o.YSteps)
		y := pad.Top + plotH*frac
		value := int64(math.Round(domainMax * (1 - frac)))
		grid.Append(
			Line(nodeID(p, "gridline", i), pad.Left, y, pad.Left+plotW, y, Style{Stroke: colorGrid, StrokeWidth: 1}),
			Text(nodeID(p, "ylabel", i), pad.Left-10, y+5, core.FormatThousands(value), Style{
				Fill: colorMuted, FontSize: 12, Anchor: "end",
			}),
		)
	}

	axes := Group(p+"-axes",
		Line(p+"-yaxis", pad.Left, pad.Top, pad.Left, baseline, Style{Stroke: colorAxis, StrokeWidth: 2}),
		Line(p+"-xaxis", pad.Left, baseline, pad.Left+plotW, baseline, Style{Stroke: colorAxis, StrokeWidth: 2}),
	)

	areaPts := make([]Point, 0, n+2)
	areaPts = append(areaPts, pts...)
	areaPts = append(areaPts, Point{X: pts[n-1].X, Y: baseline}, Point{X: pad.Left, Y: baseline})
	area := Path(p+"-area", areaPts, true, Style{Fill: areaGrad.Ref(), Opacity: 0.3})

	line := Path(p+"-line", append([]Point(nil), pts...), false, Style{
		Stroke: lineGrad.Ref(), StrokeWidth: 3, Fill: "none",
	})

	xLabels := Group(p + "-xlabels")
	markers := Group(p + "-points")
	tooltips := Group(p + "-tooltips")
	interactions := make([]Interaction, 0, n)

	for i, b := range buckets {
		pt := pts[i]
		if i%o.LabelEvery == 0 || i == n-1 {
			xLabels.Append(Text(nodeID(p, "xlabel", i), pt.X, baseline+20, b.ShortLabel, Style{
				Fill: colorMuted, FontSize: 12, Anchor: "middle",
			}))
		}

		key := nodeID(p, "hover", i)
		markerID := nodeID(p, "point", i)
		tipID := nodeID(p, "tooltip", i)

		marker := Circle(markerID, pt.X, pt.Y, pointRadius, Style{
			Fill: colorAccent, Stroke: "#ffffff", StrokeWidth: 2, Cursor: "pointer",
		})
		marker.Hover = key
		markers.Append(marker)

		tip := Group(tipID,
			Rect(tipID+"-bg", pt.X-50, pt.Y-55, 100, 40, 6, Style{Fill: colorTooltipBg, Opacity: 0.95}),
			Text(tipID+"-label", pt.X, pt.Y-38, b.Label, Style{
				Fill: colorTooltipText, FontSize: 12, FontWeight: "600", Anchor: "middle",
			}),
			Text(tipID+"-value", pt.X, pt.Y-22, core.FormatThousands(b.CumulativeTotal)+" XP", Style{
				Fill: colorTooltipSub, FontSize: 12, Anchor: "middle",
			}),
		)
		tip.Style.Hidden = true
		tooltips.Append(tip)

		interactions = append(interactions, Interaction{
			Key:     key,
			Sources: []string{markerID},
			Enter: []Effect{
				{Target: markerID, Attr: AttrRadius, Value: strconv.Itoa(pointRadiusHover)},
				{Target: tipID, Attr: AttrVisible, Value: "true"},
			},
			Leave: []Effect{
				{Target: markerID, Attr: AttrRadius, Value: strconv.Itoa(pointRadius)},
				{Target: tipID, Attr: AttrVisible, Value: "false"},
			},
		})
	}

	title := Text(p+"-title", vp.Width/2, 25, o.Title, Style{
		Fill: colorLabel, FontSize: 14, FontWeight: "600", Anchor: "middle",
	})

	root := Group(p+"-chart", title, grid, axes, area, line, xLabels, markers, tooltips)
	return &Geometry{
		Width:        vp.Width,
		Height:       vp.Height,
		Root:         root,
		Gradients:    []Gradient{lineGrad, areaGrad},
		Interactions: interactions,
	}, nil
}
