package chart

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the drawable type of a Node.
type Kind string

const (
	KindGroup   Kind = "group"
	KindLine    Kind = "line"
	KindPath    Kind = "path"
	KindCircle  Kind = "circle"
	KindPolygon Kind = "polygon"
	KindText    Kind = "text"
	KindRect    Kind = "rect"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Style carries presentation attributes. Colors are CSS colors or
// "url(#id)" references into Geometry.Gradients. A zero Opacity means opaque.
type Style struct {
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	FontSize    float64 `json:"fontSize,omitempty"`
	FontWeight  string  `json:"fontWeight,omitempty"`
	Anchor      string  `json:"anchor,omitempty"`   // start, middle, end
	Baseline    string  `json:"baseline,omitempty"` // alphabetic unless "middle"
	Cursor      string  `json:"cursor,omitempty"`
	Hidden      bool    `json:"hidden,omitempty"`
}

// Node is one drawable element. Which coordinate fields are meaningful
// depends on Kind:
//
//	line:    X1,Y1 -> X2,Y2
//	path:    Points, Closed
//	polygon: Points
//	circle:  CX, CY, R
//	text:    X, Y, Text
//	rect:    X, Y, W, H, RX
//	group:   Children
type Node struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	X1 float64 `json:"x1,omitempty"`
	Y1 float64 `json:"y1,omitempty"`
	X2 float64 `json:"x2,omitempty"`
	Y2 float64 `json:"y2,omitempty"`

	Points []Point `json:"points,omitempty"`
	Closed bool    `json:"closed,omitempty"`

	CX float64 `json:"cx,omitempty"`
	CY float64 `json:"cy,omitempty"`
	R  float64 `json:"r,omitempty"`

	X  float64 `json:"x,omitempty"`
	Y  float64 `json:"y,omitempty"`
	W  float64 `json:"w,omitempty"`
	H  float64 `json:"h,omitempty"`
	RX float64 `json:"rx,omitempty"`

	Text string `json:"text,omitempty"`

	Style Style `json:"style"`

	// Hover is the key of the Interaction this node takes part in.
	Hover string `json:"hover,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

// D returns the SVG path data of a path or polygon node.
func (n *Node) D() string {
	if len(n.Points) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range n.Points {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(FormatCoord(p.X))
		b.WriteByte(' ')
		b.WriteString(FormatCoord(p.Y))
	}
	if n.Closed || n.Kind == KindPolygon {
		b.WriteString(" Z")
	}
	return b.String()
}

// FormatCoord renders a coordinate with at most two decimals.
func FormatCoord(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0 // no "-0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// GradientStop is one color stop. Offset is in 0..1 and a zero Opacity means
// opaque.
type GradientStop struct {
	Offset  float64 `json:"offset"`
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity,omitempty"`
}

// Gradient is a linear gradient in bounding-box fractions, or a radial one
// centered on the bounding box when Radial is set.
type Gradient struct {
	ID     string         `json:"id"`
	Radial bool           `json:"radial,omitempty"`
	X1     float64        `json:"x1"`
	Y1     float64        `json:"y1"`
	X2     float64        `json:"x2"`
	Y2     float64        `json:"y2"`
	Stops  []GradientStop `json:"stops"`
}

// Ref returns the fill/stroke reference for g.
func (g Gradient) Ref() string {
	return "url(#" + g.ID + ")"
}

// Effect sets Attr of node Target to Value. Attr is one of "r", "fill" or
// "visible" ("true"/"false").
type Effect struct {
	Target string `json:"target"`
	Attr   string `json:"attr"`
	Value  string `json:"value"`
}

const (
	AttrRadius  = "r"
	AttrFill    = "fill"
	AttrVisible = "visible"
)

// Interaction is a symbolic hover group: entering any of Sources applies
// Enter, leaving applies Leave. The sink owns event wiring.
type Interaction struct {
	Key     string   `json:"key"`
	Sources []string `json:"sources"`
	Enter   []Effect `json:"enter"`
	Leave   []Effect `json:"leave"`
}

// AxisBinding ties one radar axis to the nodes sharing its hover state.
type AxisBinding struct {
	Index     int    `json:"index"`
	VertexID  string `json:"vertexId"`
	LabelID   string `json:"labelId"`
	TooltipID string `json:"tooltipId"`
}

// Geometry is the renderer-independent output of a chart build. The builder
// keeps no reference to it.
type Geometry struct {
	Width        float64       `json:"width"`
	Height       float64       `json:"height"`
	Empty        bool          `json:"empty,omitempty"`
	Root         *Node         `json:"root"`
	Gradients    []Gradient    `json:"gradients,omitempty"`
	Interactions []Interaction `json:"interactions,omitempty"`
	Axes         []AxisBinding `json:"axes,omitempty"`
}

// Walk visits every node depth first in document order. Returning false from
// fn skips the node's children.
func (g *Geometry) Walk(fn func(n *Node) bool) {
	if g == nil || g.Root == nil {
		return
	}
	walk(g.Root, fn)
}

func walk(n *Node, fn func(n *Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, fn)
	}
}

// Find returns the node with the given ID or nil.
func (g *Geometry) Find(id string) *Node {
	var found *Node
	g.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Gradient returns the gradient with the given ID.
func (g *Geometry) Gradient(id string) (Gradient, bool) {
	for _, gr := range g.Gradients {
		if gr.ID == id {
			return gr, true
		}
	}
	return Gradient{}, false
}

// Primitive constructors. IDs are supplied by the builders so that identical
// inputs yield identical trees.

func Group(id string, children ...*Node) *Node {
	return &Node{ID: id, Kind: KindGroup, Children: children}
}

func Line(id string, x1, y1, x2, y2 float64, s Style) *Node {
	return &Node{ID: id, Kind: KindLine, X1: x1, Y1: y1, X2: x2, Y2: y2, Style: s}
}

func Path(id string, pts []Point, closed bool, s Style) *Node {
	return &Node{ID: id, Kind: KindPath, Points: pts, Closed: closed, Style: s}
}

func Polygon(id string, pts []Point, s Style) *Node {
	return &Node{ID: id, Kind: KindPolygon, Points: pts, Style: s}
}

func Circle(id string, cx, cy, r float64, s Style) *Node {
	return &Node{ID: id, Kind: KindCircle, CX: cx, CY: cy, R: r, Style: s}
}

func Text(id string, x, y float64, body string, s Style) *Node {
	return &Node{ID: id, Kind: KindText, X: x, Y: y, Text: body, Style: s}
}

func Rect(id string, x, y, w, h, rx float64, s Style) *Node {
	return &Node{ID: id, Kind: KindRect, X: x, Y: y, W: w, H: h, RX: rx, Style: s}
}

// Append adds children to a group node and returns it.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

func nodeID(prefix, role string, i int) string {
	return prefix + "-" + role + "-" + strconv.Itoa(i)
}
