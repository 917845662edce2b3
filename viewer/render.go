package viewer

import (
	"fmt"
	"strconv"

	"github.com/acirtautas/genmetrika-gallery/models"
)

// TransformOrigin is the pivot every Transform is applied around.
const TransformOrigin = "center center"

// DefaultSidebarWidth is the thumbnail column width used when a Layout
// does not set one.
const DefaultSidebarWidth = 90

// Layout describes the viewport the viewer is drawn into. The stage, where
// the main image lives, is the viewport minus the sidebar on the left and
// the header and controls bars above and below it.
type Layout struct {
	Width        float64
	Height       float64
	SidebarWidth float64
	HeaderHeight float64
	FooterHeight float64
}

func (l Layout) sidebar() float64 {
	if l.SidebarWidth <= 0 {
		return DefaultSidebarWidth
	}
	return l.SidebarWidth
}

// Stage returns the stage size. Negative sizes are reported as zero.
func (l Layout) Stage() (width, height float64) {
	width = l.Width - l.sidebar()
	height = l.Height - l.HeaderHeight - l.FooterHeight
	return max(width, 0), max(height, 0)
}

// StageCenter returns the untransformed image center in viewport coordinates.
func (l Layout) StageCenter() (x, y float64) {
	w, h := l.Stage()
	return l.sidebar() + w/2, l.HeaderHeight + h/2
}

// InStage reports whether the viewport point (x, y) falls on the stage.
// An unsized layout accepts every point.
func (l Layout) InStage(x, y float64) bool {
	if l.Width <= 0 || l.Height <= 0 {
		return true
	}
	w, h := l.Stage()
	left, top := l.sidebar(), l.HeaderHeight
	return x >= left && x < left+w && y >= top && y < top+h
}

// Box bounds the rendered image before the transform is applied.
type Box struct {
	MaxWidth  float64
	MaxHeight float64
}

// FitBox returns the bounds that keep an image rotated by rotation degrees
// inside a stage of the given size. Quarter turns swap the axes.
func FitBox(stageWidth, stageHeight float64, rotation int) Box {
	switch ((rotation % 360) + 360) % 360 {
	case 90, 270:
		return Box{MaxWidth: stageHeight, MaxHeight: stageWidth}
	}
	return Box{MaxWidth: stageWidth, MaxHeight: stageHeight}
}

// Transform is the visual transform of the main image, applied around
// TransformOrigin in the order translate, scale, rotate.
type Transform struct {
	TranslateX float64
	TranslateY float64
	Scale      float64
	Rotation   int // in [0, 360)
}

func (t Transform) String() string {
	return fmt.Sprintf("translate(%spx,%spx) scale(%s) rotate(%ddeg)",
		formatFloat(t.TranslateX), formatFloat(t.TranslateY), formatFloat(t.Scale), t.Rotation)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LoadStatus is the state of the main image load.
type LoadStatus int

const (
	LoadPending LoadStatus = iota
	Loaded
	LoadFailed
)

func (s LoadStatus) String() string {
	switch s {
	case LoadPending:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "failed"
	}
	return "unknown"
}

// Frame is everything a Surface needs to draw the viewer once.
type Frame struct {
	Title           string
	Index           int
	Total           int
	Position        string // "i / n", one based
	Entry           models.GalleryEntry
	Transform       Transform
	TransformOrigin string
	Box             Box
	Layout          Layout
	Load            LoadStatus
	Panning         bool
	Zoomed          bool
	Notice          string
}

// Dimmed reports whether the main image is drawn with the loading filter.
// A failed load stays dimmed.
func (f Frame) Dimmed() bool {
	return f.Load != Loaded
}

// Position formats the one based position of index in a gallery of total.
func Position(index, total int) string {
	return fmt.Sprintf("%d / %d", index+1, total)
}

// CenteredWindow returns the half open range [start, end) of visible items
// out of total that keeps active as close to the middle as the edges allow.
func CenteredWindow(active, total, visible int) (start, end int) {
	if total <= 0 || visible <= 0 {
		return 0, 0
	}
	if visible >= total {
		return 0, total
	}
	start = active - visible/2
	start = max(start, 0)
	start = min(start, total-visible)
	return start, start + visible
}
