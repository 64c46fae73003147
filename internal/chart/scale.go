// Package chart builds renderer-independent geometry for the XP line chart
// and the skills radar chart. Builders are pure functions of their inputs.
package chart

import (
	"errors"
	"fmt"
	"math"

	"xpdash/internal/core"
)

// ErrInvalidViewport is returned for negative dimensions or padding, or when
// the padding leaves no plot area.
var ErrInvalidViewport = errors.New("invalid viewport")

// RadarDomain is the fixed domain maximum of the radar chart.
const RadarDomain = 100

// Linear maps value in [0, domainMax] onto [0, rangeMax]. A non-positive
// domain maps everything to 0.
func Linear(value, domainMax, rangeMax float64) float64 {
	if domainMax <= 0 || math.IsNaN(domainMax) || math.IsInf(domainMax, 0) {
		return 0
	}
	v := value / domainMax * rangeMax
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Viewport fallbacks.
const (
	DefaultLineWidth  = 600
	DefaultLineHeight = 400

	DefaultRadarSize = 400
	MaxRadarSize     = 450
)

// DefaultLinePadding leaves room for the value labels on the left and the
// month labels below.
var DefaultLinePadding = core.Padding{Top: 40, Right: 40, Bottom: 60, Left: 60}

func checkViewport(vp core.ViewportSpec) error {
	p := vp.Padding
	for _, v := range []float64{vp.Width, vp.Height, p.Top, p.Right, p.Bottom, p.Left} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %+v", ErrInvalidViewport, vp)
		}
	}
	return nil
}

// lineViewport applies fallbacks for zero measurements.
func lineViewport(vp core.ViewportSpec) (core.ViewportSpec, error) {
	if err := checkViewport(vp); err != nil {
		return vp, err
	}
	if vp.Width == 0 {
		vp.Width = DefaultLineWidth
	}
	if vp.Height == 0 {
		vp.Height = DefaultLineHeight
	}
	if vp.Padding == (core.Padding{}) {
		vp.Padding = DefaultLinePadding
	}
	if vp.Width-vp.Padding.Left-vp.Padding.Right <= 0 || vp.Height-vp.Padding.Top-vp.Padding.Bottom <= 0 {
		return vp, fmt.Errorf("%w: padding exceeds %gx%g", ErrInvalidViewport, vp.Width, vp.Height)
	}
	return vp, nil
}

// radarSize returns the side of the square radar canvas.
func radarSize(vp core.ViewportSpec) (float64, error) {
	if err := checkViewport(vp); err != nil {
		return 0, err
	}
	size := math.Min(vp.Width, vp.Height)
	if vp.Width == 0 || vp.Height == 0 {
		size = math.Max(vp.Width, vp.Height)
	}
	if size == 0 {
		return DefaultRadarSize, nil
	}
	return math.Min(size, MaxRadarSize), nil
}
