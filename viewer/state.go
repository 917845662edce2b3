// Package viewer holds the state machine behind the gallery modal: image
// transform, navigation and the table that maps input events to
// transitions. It knows nothing about how frames are drawn; a Surface does.
package viewer

import "math"

const (
	MinScale   = 1.0
	MaxScale   = 10.0
	ZoomStep   = 1.2
	WheelStep  = 1.15
	RotateStep = 90

	// scales this close to MinScale are snapped to it
	scaleEpsilon = 1e-9
)

// State is the transform and position of one open viewer. Transitions are
// value methods returning the next state; State has no hidden references.
type State struct {
	Index    int
	Scale    float64
	Rotation int // multiple of 90, unbounded
	PanX     float64
	PanY     float64
	Panning  bool
}

// NewState returns the state of a viewer opened at index.
func NewState(index int) State {
	return State{Index: index, Scale: MinScale}
}

// GoTo moves to index and drops zoom and pan. Rotation is kept.
// index must already be within the gallery; GoTo does not clamp.
func (s State) GoTo(index int) State {
	s.Index = index
	s.Scale = MinScale
	s.PanX, s.PanY = 0, 0
	s.Panning = false
	return s
}

// Zoom multiplies the scale by factor within [MinScale, MaxScale].
// Reaching MinScale recenters the image.
func (s State) Zoom(factor float64) State {
	return s.rescale(s.Scale * factor)
}

// ZoomIn applies one button step.
func (s State) ZoomIn() State {
	return s.rescale(s.Scale * ZoomStep)
}

// ZoomOut undoes one button step.
func (s State) ZoomOut() State {
	return s.rescale(s.Scale / ZoomStep)
}

// Rotate adds delta degrees.
func (s State) Rotate(delta int) State {
	s.Rotation += delta
	return s
}

// NormalizedRotation is Rotation in [0, 360).
func (s State) NormalizedRotation() int {
	return ((s.Rotation % 360) + 360) % 360
}

// Zoomed reports whether the image is scaled above 1:1, the only case in
// which it can be panned.
func (s State) Zoomed() bool {
	return s.Scale > MinScale
}

// Pan shifts the image by (dx, dy). It has no effect at 1:1.
func (s State) Pan(dx, dy float64) State {
	if !s.Zoomed() {
		return s
	}
	s.PanX += dx
	s.PanY += dy
	return s
}

// BeginPan starts a drag when the image is zoomed.
func (s State) BeginPan() State {
	if !s.Zoomed() {
		return s
	}
	s.Panning = true
	return s
}

// EndPan stops a drag.
func (s State) EndPan() State {
	s.Panning = false
	return s
}

// WheelZoom zooms one wheel step, in or out, keeping the image point under
// the cursor in place. offsetX and offsetY locate the cursor relative to the
// rendered image center before the zoom.
func (s State) WheelZoom(offsetX, offsetY float64, in bool) State {
	factor := 1 / WheelStep
	if in {
		factor = WheelStep
	}
	return s.WheelZoomBy(offsetX, offsetY, factor)
}

// WheelZoomBy is WheelZoom with an explicit factor.
func (s State) WheelZoomBy(offsetX, offsetY, factor float64) State {
	prev := s.Scale
	next := s.rescale(prev * factor)
	if !next.Zoomed() {
		return next
	}
	ratio := next.Scale / prev
	next.PanX -= offsetX * (ratio - 1)
	next.PanY -= offsetY * (ratio - 1)
	return next
}

// Reset restores 1:1, no rotation and no pan on the current index.
func (s State) Reset() State {
	return State{Index: s.Index, Scale: MinScale}
}

func (s State) rescale(scale float64) State {
	s.Scale = clampScale(scale)
	if s.Scale == MinScale {
		s.PanX, s.PanY = 0, 0
		s.Panning = false
	}
	return s
}

func clampScale(scale float64) float64 {
	if math.IsNaN(scale) || scale < MinScale+scaleEpsilon {
		return MinScale
	}
	if scale > MaxScale {
		return MaxScale
	}
	return scale
}
