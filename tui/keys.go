package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/acirtautas/genmetrika-gallery/viewer"
)

type keyMap struct {
	Prev        key.Binding
	Next        key.Binding
	ZoomIn      key.Binding
	ZoomOut     key.Binding
	RotateLeft  key.Binding
	RotateRight key.Binding
	Reset       key.Binding
	Copy        key.Binding
	Close       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Prev:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev")),
		Next:        key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
		ZoomIn:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:     key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
		RotateLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "rotate left")),
		RotateRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "rotate right")),
		Reset:       key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "reset")),
		Copy:        key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy link")),
		Close:       key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"), key.WithHelp("esc/q", "close")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.ZoomIn, k.ZoomOut, k.RotateLeft, k.RotateRight, k.Reset, k.Copy, k.Close}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next},
		{k.ZoomIn, k.ZoomOut, k.Reset},
		{k.RotateLeft, k.RotateRight},
		{k.Copy, k.Close},
	}
}

type keyAction struct {
	binding key.Binding
	kind    viewer.EventKind
}

// actions maps the terminal-only bindings to viewer events. Arrows, escape
// and the zoom keys go through Controller.HandleKey first.
func (k keyMap) actions() []keyAction {
	return []keyAction{
		{k.Prev, viewer.EventPrev},
		{k.Next, viewer.EventNext},
		{k.RotateLeft, viewer.EventRotateLeft},
		{k.RotateRight, viewer.EventRotateRight},
		{k.Reset, viewer.EventReset},
		{k.Copy, viewer.EventCopyLink},
		{k.Close, viewer.EventClose},
	}
}

// viewerKey translates a terminal key press into a DOM key name.
func viewerKey(msg tea.KeyMsg) (string, viewer.Modifiers) {
	mods := viewer.Modifiers{Meta: msg.Alt}
	switch msg.Type {
	case tea.KeyRight:
		return viewer.KeyArrowRight, mods
	case tea.KeyLeft:
		return viewer.KeyArrowLeft, mods
	case tea.KeyEsc:
		return viewer.KeyEscape, mods
	case tea.KeyRunes:
		if len(msg.Runes) == 1 {
			return string(msg.Runes[0]), mods
		}
	}
	return "", mods
}
