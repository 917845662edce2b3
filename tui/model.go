// Package tui draws the gallery viewer in a terminal. Model implements
// viewer.Surface: the controller decides, the model renders frames and turns
// side effects into bubbletea commands.
package tui

import (
	"context"
	"errors"
	"log/slog"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/acirtautas/genmetrika-gallery/models"
	"github.com/acirtautas/genmetrika-gallery/viewer"
)

const (
	headerHeight = 1
	footerHeight = 2
)

var errClipboardUnsupported = errors.New("clipboard unsupported on this system")

// Options configure a Model.
type Options struct {
	// SidebarWidth is the thumbnail column width in cells.
	SidebarWidth int
	Loader       *ImageLoader
	// Clipboard replaces the system clipboard, mainly for tests.
	Clipboard func(string) error
}

// Model is the bubbletea model of an open viewer.
type Model struct {
	ctx     context.Context
	gallery *models.Gallery
	ctrl    *viewer.Controller
	loader  *ImageLoader
	copy    func(string) error
	keys    keyMap
	help    help.Model
	logger  *slog.Logger

	frame    viewer.Frame
	sidebar  int
	location string
	info     ImageInfo
	pending  []tea.Cmd
	quitting bool
}

// NewModel opens gallery at start. Image loads are bound to ctx. Closing
// the viewer leaves loads in flight to finish; their results are ignored.
func NewModel(ctx context.Context, gallery *models.Gallery, start int, opts Options) (*Model, error) {
	m := &Model{
		ctx:     ctx,
		gallery: gallery,
		loader:  opts.Loader,
		copy:    opts.Clipboard,
		keys:    defaultKeyMap(),
		help:    help.New(),
		logger:  slog.Default().With("component", "tui"),
		sidebar: opts.SidebarWidth,
	}
	if m.loader == nil {
		m.loader = NewImageLoader(nil, "", 0)
	}
	if m.copy == nil {
		m.copy = systemClipboard
	}
	if m.sidebar <= 0 {
		m.sidebar = 16
	}

	layout := viewer.Layout{
		SidebarWidth: float64(m.sidebar),
		HeaderHeight: headerHeight,
		FooterHeight: footerHeight,
	}
	ctrl, err := viewer.Open(gallery, start, m, layout)
	if err != nil {
		return nil, err
	}
	m.ctrl = ctrl
	return m, nil
}

func systemClipboard(text string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}

// Render implements viewer.Surface.
func (m *Model) Render(f viewer.Frame) {
	if f.Index != m.frame.Index || f.Load != viewer.Loaded {
		m.info = ImageInfo{}
	}
	m.frame = f
}

// LoadImage implements viewer.Surface.
func (m *Model) LoadImage(req viewer.LoadRequest) {
	m.pending = append(m.pending, m.loader.Load(m.ctx, req))
}

// ReplaceLocation implements viewer.Surface. The terminal has no address
// bar; the URL is shown in the status line.
func (m *Model) ReplaceLocation(url string) {
	m.location = url
	m.logger.Debug("location", slog.String("url", url))
}

// CopyText implements viewer.Surface.
func (m *Model) CopyText(text string) error {
	return m.copy(text)
}

// Dismiss implements viewer.Surface.
func (m *Model) Dismiss() {
	m.quitting = true
	m.pending = append(m.pending, tea.Quit)
}

// Frame returns the last rendered frame.
func (m *Model) Frame() viewer.Frame {
	return m.frame
}

// Location returns the detail page URL of the current image.
func (m *Model) Location() string {
	return m.location
}

func (m *Model) Init() tea.Cmd {
	return m.drain()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.ctrl.Dispatch(viewer.Event{
			Kind:   viewer.EventResize,
			Width:  float64(msg.Width),
			Height: float64(msg.Height),
		})
	case tea.KeyMsg:
		m.handleKey(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
	case imageLoadedMsg:
		if m.ctrl.Dispatch(viewer.Event{Kind: viewer.EventImageLoaded, Seq: msg.seq}) {
			m.info = msg.info
		}
	case imageFailedMsg:
		m.ctrl.Dispatch(viewer.Event{Kind: viewer.EventImageFailed, Seq: msg.seq})
	}
	return m, m.drain()
}

func (m *Model) handleKey(msg tea.KeyMsg) {
	name, mods := viewerKey(msg)
	if name != "" {
		if handled, _ := m.ctrl.HandleKey(name, mods); handled {
			return
		}
	}
	for _, action := range m.keys.actions() {
		if key.Matches(msg, action.binding) {
			m.ctrl.Dispatch(viewer.Event{Kind: action.kind})
			return
		}
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	x, y := float64(msg.X), float64(msg.Y)
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.ctrl.Dispatch(viewer.Event{Kind: viewer.EventWheel, X: x, Y: y, DeltaY: -1})
	case msg.Button == tea.MouseButtonWheelDown:
		m.ctrl.Dispatch(viewer.Event{Kind: viewer.EventWheel, X: x, Y: y, DeltaY: 1})
	case msg.Button == tea.MouseButtonWheelLeft, msg.Button == tea.MouseButtonWheelRight:
		// sideways scrolling has no vertical delta and zooms out
		m.ctrl.Dispatch(viewer.Event{Kind: viewer.EventWheel, X: x, Y: y})
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if msg.X < m.sidebar {
			if index, ok := m.thumbnailAt(msg.Y); ok {
				m.ctrl.Dispatch(viewer.Event{Kind: viewer.EventSelect, Index: index})
			}
			return
		}
		m.ctrl.Dispatch(viewer.Event{Kind: viewer.EventPointerDown, X: x, Y: y})
	case msg.Action == tea.MouseActionMotion:
		if !m.frame.Layout.InStage(x, y) {
			m.ctrl.Dispatch(viewer.Event{Kind: viewer.EventPointerLeave})
			return
		}
		m.ctrl.Dispatch(viewer.Event{Kind: viewer.EventPointerMove, X: x, Y: y})
	case msg.Action == tea.MouseActionRelease:
		m.ctrl.Dispatch(viewer.Event{Kind: viewer.EventPointerUp})
	}
}

// thumbnailAt maps a sidebar row to a gallery index.
func (m *Model) thumbnailAt(row int) (int, bool) {
	_, rows := m.frame.Layout.Stage()
	start, end := viewer.CenteredWindow(m.frame.Index, m.frame.Total, int(rows))
	index := start + row - headerHeight
	if row < headerHeight || index >= end {
		return 0, false
	}
	return index, true
}

func (m *Model) drain() tea.Cmd {
	if len(m.pending) == 0 {
		return nil
	}
	cmds := m.pending
	m.pending = nil
	return tea.Batch(cmds...)
}
