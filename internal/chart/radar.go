package chart

import (
	"math"
	"strconv"

	"xpdash/internal/core"
)

const (
	radarLevels       = 5
	radarRadiusFactor = 0.32
	radarLabelOffset  = 30

	vertexRadius      = 4
	vertexRadiusHover = 6

	colorLevel = "#e2e8f0"
)

// RadarOptions tunes the skills radar chart.
type RadarOptions struct {
	IDPrefix string // default "skills"
}

// BuildRadarChart lays out skills on eight fixed axes with default options.
func BuildRadarChart(skills []core.SkillScore, vp core.ViewportSpec) (*Geometry, error) {
	return RadarOptions{}.Build(skills, vp)
}

// Build lays out skills on core.SkillAxisCount axes starting at the top and
// proceeding clockwise. Scores beyond the axis count are ignored and missing
// ones are drawn as zero with an empty label. Values are clamped to 0..100
// against a fixed domain of 100.
//
// Hovering a vertex or its label drives one shared state per axis; the
// pairing is exposed in Geometry.Axes.
func (o RadarOptions) Build(skills []core.SkillScore, vp core.ViewportSpec) (*Geometry, error) {
	p := o.IDPrefix
	if p == "" {
		p = "skills"
	}
	size, err := radarSize(vp)
	if err != nil {
		return nil, err
	}

	var scores [core.SkillAxisCount]core.SkillScore
	copy(scores[:], skills)

	center := size / 2
	radius := size * radarRadiusFactor
	step := 2 * math.Pi / core.SkillAxisCount

	fill := Gradient{
		ID: p + "-fill", Radial: true, X1: 0.5, Y1: 0.5, X2: 0.5, Y2: 0.5,
		Stops: []GradientStop{{Offset: 0, Color: colorAccentAlt, Opacity: 0.8}, {Offset: 1, Color: colorAccent, Opacity: 0.4}},
	}

	levels := Group(p + "-levels")
	for level := 1; level <= radarLevels; level++ {
		levels.Append(Circle(nodeID(p, "level", level), center, center, radius*float64(level)/radarLevels, Style{
			Fill: "none", Stroke: colorLevel, StrokeWidth: 1,
		}))
	}

	spokes := Group(p + "-spokes")
	labels := Group(p + "-labels")
	vertices := Group(p + "-vertices")
	tooltips := Group(p + "-tooltips")
	shape := make([]Point, 0, core.SkillAxisCount)
	interactions := make([]Interaction, 0, core.SkillAxisCount)
	axes := make([]AxisBinding, 0, core.SkillAxisCount)

	for i, s := range scores {
		angle := step*float64(i) - math.Pi/2
		cos, sin := math.Cos(angle), math.Sin(angle)

		spokes.Append(Line(nodeID(p, "spoke", i), center, center, center+radius*cos, center+radius*sin, Style{
			Stroke: colorAxis, StrokeWidth: 1,
		}))

		value := core.ClampPercent(s.Value)
		r := Linear(value, RadarDomain, radius)
		v := Point{X: center + r*cos, Y: center + r*sin}
		shape = append(shape, v)

		key := nodeID(p, "axis", i)
		vertexID := nodeID(p, "vertex", i)
		labelID := nodeID(p, "label", i)
		tipID := nodeID(p, "tooltip", i)

		label := Text(labelID, center+(radius+radarLabelOffset)*cos, center+(radius+radarLabelOffset)*sin, s.Name, Style{
			Fill: colorLabel, FontSize: 12, FontWeight: "600", Anchor: "middle", Baseline: "middle", Cursor: "pointer",
		})
		label.Hover = key
		labels.Append(label)

		vertex := Circle(vertexID, v.X, v.Y, vertexRadius, Style{
			Fill: colorAccent, Stroke: "#ffffff", StrokeWidth: 2, Cursor: "pointer",
		})
		vertex.Hover = key
		vertices.Append(vertex)

		tip := Group(tipID,
			Rect(tipID+"-bg", v.X-24, v.Y-34, 48, 22, 4, Style{Fill: colorTooltipBg, Opacity: 0.95}),
			Text(tipID+"-value", v.X, v.Y-19, strconv.Itoa(int(math.Round(value)))+"%", Style{
				Fill: colorTooltipText, FontSize: 12, FontWeight: "600", Anchor: "middle",
			}),
		)
		tip.Style.Hidden = true
		tooltips.Append(tip)

		interactions = append(interactions, Interaction{
			Key:     key,
			Sources: []string{vertexID, labelID},
			Enter: []Effect{
				{Target: vertexID, Attr: AttrRadius, Value: strconv.Itoa(vertexRadiusHover)},
				{Target: labelID, Attr: AttrFill, Value: colorAccent},
				{Target: tipID, Attr: AttrVisible, Value: "true"},
			},
			Leave: []Effect{
				{Target: vertexID, Attr: AttrRadius, Value: strconv.Itoa(vertexRadius)},
				{Target: labelID, Attr: AttrFill, Value: colorLabel},
				{Target: tipID, Attr: AttrVisible, Value: "false"},
			},
		})
		axes = append(axes, AxisBinding{Index: i, VertexID: vertexID, LabelID: labelID, TooltipID: tipID})
	}

	polygon := Polygon(p+"-shape", shape, Style{
		Fill: fill.Ref(), Stroke: colorAccent, StrokeWidth: 2, Opacity: 0.7,
	})

	root := Group(p+"-chart", levels, spokes, polygon, labels, vertices, tooltips)
	return &Geometry{
		Width:        size,
		Height:       size,
		Root:         root,
		Gradients:    []Gradient{fill},
		Interactions: interactions,
		Axes:         axes,
	}, nil
}
