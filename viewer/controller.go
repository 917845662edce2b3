package viewer

import (
	"errors"
	"log/slog"

	"github.com/acirtautas/genmetrika-gallery/models"
)

var (
	ErrEmptyGallery    = errors.New("gallery has no entries")
	ErrIndexOutOfRange = errors.New("start index out of range")
)

const (
	noticeCopied      = "Link copied"
	noticeNoClipboard = "Clipboard is not available."
)

// LoadRequest asks a Surface to fetch the main image. Seq identifies the
// navigation that issued it; results carrying an older Seq are dropped.
type LoadRequest struct {
	Seq   uint64
	Index int
	URL   string
}

// Surface draws frames and performs the side effects the viewer asks for.
// All calls are made from the goroutine that dispatches events.
type Surface interface {
	Render(Frame)
	LoadImage(LoadRequest)
	ReplaceLocation(url string)
	CopyText(text string) error
	Dismiss()
}

// EventKind names an input the viewer reacts to.
type EventKind int

const (
	EventNext EventKind = iota + 1
	EventPrev
	EventSelect
	EventZoomIn
	EventZoomOut
	EventRotateLeft
	EventRotateRight
	EventReset
	EventPointerDown
	EventPointerMove
	EventPointerUp
	EventPointerLeave
	EventWheel
	EventResize
	EventImageLoaded
	EventImageFailed
	EventCopyLink
	EventClose
)

var eventNames = map[EventKind]string{
	EventNext:         "next",
	EventPrev:         "prev",
	EventSelect:       "select",
	EventZoomIn:       "zoom_in",
	EventZoomOut:      "zoom_out",
	EventRotateLeft:   "rotate_left",
	EventRotateRight:  "rotate_right",
	EventReset:        "reset",
	EventPointerDown:  "pointer_down",
	EventPointerMove:  "pointer_move",
	EventPointerUp:    "pointer_up",
	EventPointerLeave: "pointer_leave",
	EventWheel:        "wheel",
	EventResize:       "resize",
	EventImageLoaded:  "image_loaded",
	EventImageFailed:  "image_failed",
	EventCopyLink:     "copy_link",
	EventClose:        "close",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one input. Only the fields relevant to Kind are read:
// Index for EventSelect, X and Y for pointer and wheel events, DeltaY for
// EventWheel (negative zooms in, zero or positive zooms out), Width and Height for EventResize and Seq
// for image load results.
type Event struct {
	Kind   EventKind
	Index  int
	X, Y   float64
	DeltaY float64
	Width  float64
	Height float64
	Seq    uint64
}

// session is the full mutable state of an open viewer. Transitions take
// and return it by value.
type session struct {
	state  State
	total  int
	layout Layout
	load   LoadStatus
	seq    uint64
	// pointer position and pan offset when the current drag started
	anchorX, anchorY       float64
	anchorPanX, anchorPanY float64
	notice                 string
}

type effect uint8

const (
	effectRender effect = 1 << iota
	effectNavigate
	effectCopy
	effectClose
)

type transition struct {
	guard  func(s session, ev Event) bool
	apply  func(s session, ev Event) session
	effect effect
}

var transitions = map[EventKind]transition{
	EventNext: {
		guard:  func(s session, _ Event) bool { return s.state.Index < s.total-1 },
		apply:  func(s session, _ Event) session { return s.goTo(s.state.Index + 1) },
		effect: effectNavigate | effectRender,
	},
	EventPrev: {
		guard:  func(s session, _ Event) bool { return s.state.Index > 0 },
		apply:  func(s session, _ Event) session { return s.goTo(s.state.Index - 1) },
		effect: effectNavigate | effectRender,
	},
	EventSelect: {
		guard:  func(s session, ev Event) bool { return ev.Index >= 0 && ev.Index < s.total },
		apply:  func(s session, ev Event) session { return s.goTo(ev.Index) },
		effect: effectNavigate | effectRender,
	},
	EventZoomIn: {
		apply:  func(s session, _ Event) session { s.state = s.state.ZoomIn(); return s },
		effect: effectRender,
	},
	EventZoomOut: {
		apply:  func(s session, _ Event) session { s.state = s.state.ZoomOut(); return s },
		effect: effectRender,
	},
	EventRotateLeft: {
		apply:  func(s session, _ Event) session { s.state = s.state.Rotate(-RotateStep); return s },
		effect: effectRender,
	},
	EventRotateRight: {
		apply:  func(s session, _ Event) session { s.state = s.state.Rotate(RotateStep); return s },
		effect: effectRender,
	},
	EventReset: {
		apply:  func(s session, _ Event) session { s.state = s.state.Reset(); return s },
		effect: effectRender,
	},
	EventPointerDown: {
		guard: func(s session, ev Event) bool {
			return s.state.Zoomed() && s.layout.InStage(ev.X, ev.Y)
		},
		apply: func(s session, ev Event) session {
			s.state = s.state.BeginPan()
			s.anchorX, s.anchorY = ev.X, ev.Y
			s.anchorPanX, s.anchorPanY = s.state.PanX, s.state.PanY
			return s
		},
		effect: effectRender,
	},
	EventPointerMove: {
		guard: func(s session, _ Event) bool { return s.state.Panning },
		apply: func(s session, ev Event) session {
			s.state.PanX = s.anchorPanX + (ev.X - s.anchorX)
			s.state.PanY = s.anchorPanY + (ev.Y - s.anchorY)
			return s
		},
		effect: effectRender,
	},
	EventPointerUp: {
		guard:  func(s session, _ Event) bool { return s.state.Panning },
		apply:  func(s session, _ Event) session { s.state = s.state.EndPan(); return s },
		effect: effectRender,
	},
	EventPointerLeave: {
		guard:  func(s session, _ Event) bool { return s.state.Panning },
		apply:  func(s session, _ Event) session { s.state = s.state.EndPan(); return s },
		effect: effectRender,
	},
	EventWheel: {
		guard: func(s session, ev Event) bool { return s.layout.InStage(ev.X, ev.Y) },
		apply: func(s session, ev Event) session {
			cx, cy := s.layout.StageCenter()
			offX := ev.X - (cx + s.state.PanX)
			offY := ev.Y - (cy + s.state.PanY)
			s.state = s.state.WheelZoom(offX, offY, ev.DeltaY < 0)
			return s
		},
		effect: effectRender,
	},
	EventResize: {
		guard: func(_ session, ev Event) bool { return ev.Width >= 0 && ev.Height >= 0 },
		apply: func(s session, ev Event) session {
			s.layout.Width, s.layout.Height = ev.Width, ev.Height
			return s
		},
		effect: effectRender,
	},
	EventImageLoaded: {
		guard:  currentLoad,
		apply:  func(s session, _ Event) session { s.load = Loaded; return s },
		effect: effectRender,
	},
	EventImageFailed: {
		guard:  currentLoad,
		apply:  func(s session, _ Event) session { s.load = LoadFailed; return s },
		effect: effectRender,
	},
	EventCopyLink: {
		effect: effectCopy | effectRender,
	},
	EventClose: {
		effect: effectClose,
	},
}

func currentLoad(s session, ev Event) bool {
	return ev.Seq == s.seq && s.load == LoadPending
}

func (s session) goTo(index int) session {
	s.state = s.state.GoTo(index)
	s.notice = ""
	return s
}

// Controller drives one open viewer. It is not safe for concurrent use.
type Controller struct {
	gallery *models.Gallery
	surface Surface
	logger  *slog.Logger
	session session
	closed  bool
}

// Open shows gallery starting at index start on surface. It renders the
// first frame and requests the first image before returning.
func Open(gallery *models.Gallery, start int, surface Surface, layout Layout) (*Controller, error) {
	total := gallery.Len()
	if total == 0 {
		return nil, ErrEmptyGallery
	}
	if start < 0 || start >= total {
		return nil, ErrIndexOutOfRange
	}

	c := &Controller{
		gallery: gallery,
		surface: surface,
		logger:  slog.Default().With("component", "viewer"),
		session: session{
			state:  NewState(start),
			total:  total,
			layout: layout,
		},
	}
	c.run(effectNavigate | effectRender)
	return c, nil
}

// Dispatch applies ev and reports whether it changed anything. Events
// whose guard fails and every event after close are ignored.
func (c *Controller) Dispatch(ev Event) bool {
	if c.closed {
		return false
	}
	t, ok := transitions[ev.Kind]
	if !ok {
		return false
	}
	if t.guard != nil && !t.guard(c.session, ev) {
		return false
	}
	if t.apply != nil {
		c.session = t.apply(c.session, ev)
	}
	c.run(t.effect)
	return true
}

// HandleKey maps a key press to an event and dispatches it. It reports
// whether the key is bound to the viewer and whether the host should
// suppress its default action.
func (c *Controller) HandleKey(key string, mods Modifiers) (handled, preventDefault bool) {
	if c.closed {
		return false, false
	}
	binding, ok := BindingForKey(key, mods)
	if !ok {
		return false, false
	}
	c.Dispatch(Event{Kind: binding.Kind})
	return true, binding.PreventDefault
}

func (c *Controller) run(eff effect) {
	if eff&effectClose != 0 {
		c.closed = true
		c.logger.Debug("viewer closed", "index", c.session.state.Index)
		c.surface.Dismiss()
		return
	}
	entry := c.gallery.Entry(c.session.state.Index)
	if eff&effectNavigate != 0 {
		c.session.seq++
		if entry.Resolved() {
			c.session.load = LoadPending
			c.surface.LoadImage(LoadRequest{
				Seq:   c.session.seq,
				Index: c.session.state.Index,
				URL:   entry.FullImageURL,
			})
		} else {
			c.session.load = LoadFailed
			c.logger.Debug("entry has no full image", "index", c.session.state.Index, "detail", entry.DetailPageURL)
		}
		c.surface.ReplaceLocation(entry.DetailPageURL)
	}
	if eff&effectCopy != 0 {
		if err := c.surface.CopyText(entry.DetailPageURL); err != nil {
			c.logger.Warn("copy link failed", "error", err)
			c.session.notice = noticeNoClipboard
		} else {
			c.session.notice = noticeCopied
		}
	}
	if eff&effectRender != 0 {
		c.surface.Render(c.Frame())
	}
}

// Frame returns the frame for the current state.
func (c *Controller) Frame() Frame {
	s := c.session
	w, h := s.layout.Stage()
	rotation := s.state.NormalizedRotation()
	return Frame{
		Title:    c.gallery.Title,
		Index:    s.state.Index,
		Total:    s.total,
		Position: Position(s.state.Index, s.total),
		Entry:    c.gallery.Entry(s.state.Index),
		Transform: Transform{
			TranslateX: s.state.PanX,
			TranslateY: s.state.PanY,
			Scale:      s.state.Scale,
			Rotation:   rotation,
		},
		TransformOrigin: TransformOrigin,
		Box:             FitBox(w, h, rotation),
		Layout:          s.layout,
		Load:            s.load,
		Panning:         s.state.Panning,
		Zoomed:          s.state.Zoomed(),
		Notice:          s.notice,
	}
}

// State returns the current transform and position.
func (c *Controller) State() State {
	return c.session.state
}

// Seq identifies the latest image load request.
func (c *Controller) Seq() uint64 {
	return c.session.seq
}

// Closed reports whether the viewer has been dismissed.
func (c *Controller) Closed() bool {
	return c.closed
}
