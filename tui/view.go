package tui

import (
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/acirtautas/genmetrika-gallery/viewer"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			PaddingLeft(1)

	positionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	thumbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	activeThumbStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("230")).
				Background(lipgloss.Color("63")).
				Bold(true)

	cardStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Align(lipgloss.Center, lipgloss.Center)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	f := m.frame
	if f.Layout.Width <= 0 || f.Layout.Height <= 0 {
		return "Loading gallery..."
	}

	width := int(f.Layout.Width)
	stageW, stageH := f.Layout.Stage()

	header := m.renderHeader(width)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderSidebar(int(stageH)),
		renderStage(f, m.info, int(stageW), int(stageH)),
	)
	footer := m.renderFooter(width)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderHeader(width int) string {
	title := m.frame.Title
	if title == "" {
		title = "Gallery"
	}
	line := headerStyle.Render(title) + "  " + positionStyle.Render(m.frame.Position)
	return lipgloss.NewStyle().MaxWidth(width).Render(line)
}

func (m *Model) renderSidebar(rows int) string {
	start, end := viewer.CenteredWindow(m.frame.Index, m.frame.Total, rows)
	lines := make([]string, 0, rows)
	for i := start; i < end; i++ {
		entry := m.gallery.Entry(i)
		label := fmt.Sprintf("%3d %s", i+1, path.Base(entry.ThumbnailURL))
		style := thumbStyle
		if i == m.frame.Index {
			style = activeThumbStyle
		}
		lines = append(lines, style.Width(m.sidebar).MaxWidth(m.sidebar).Render(label))
	}
	return lipgloss.NewStyle().
		Width(m.sidebar).
		Height(rows).
		MaxHeight(rows).
		Render(strings.Join(lines, "\n"))
}

// renderStage draws the image as a card placed by the frame transform. The
// card is the on-screen footprint of the image: it grows with the scale and
// moves with the pan.
func renderStage(f viewer.Frame, info ImageInfo, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	cardW, cardH := footprint(f, width, height)
	lines := []string{path.Base(f.Entry.DetailPageURL)}
	switch f.Load {
	case viewer.LoadPending:
		lines = append(lines, "loading...")
	case viewer.LoadFailed:
		lines = append(lines, errorStyle.Render("image unavailable"))
	case viewer.Loaded:
		if info.Width > 0 {
			lines = append(lines, info.String())
		}
	}
	lines = append(lines, f.Transform.String())

	style := cardStyle.Width(cardW - 2).Height(cardH - 2)
	if f.Dimmed() {
		style = style.Faint(true).BorderForeground(lipgloss.Color("240"))
	}
	if f.Panning {
		style = style.BorderForeground(lipgloss.Color("214"))
	}
	card := style.Render(strings.Join(lines, "\n"))

	left := clamp((width-cardW)/2+int(f.Transform.TranslateX), 0, width-cardW)
	top := clamp((height-cardH)/2+int(f.Transform.TranslateY), 0, height-cardH)
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		MaxWidth(width).
		MaxHeight(height).
		Render(lipgloss.NewStyle().MarginLeft(left).MarginTop(top).Render(card))
}

// footprint sizes the card from the fit box, half the box at 1:1. Quarter
// turns swap the box, so the footprint swaps it back to screen axes.
func footprint(f viewer.Frame, width, height int) (int, int) {
	boxW, boxH := f.Box.MaxWidth, f.Box.MaxHeight
	if f.Transform.Rotation == 90 || f.Transform.Rotation == 270 {
		boxW, boxH = boxH, boxW
	}
	w := clamp(int(boxW*f.Transform.Scale/2), min(24, width), width)
	h := clamp(int(boxH*f.Transform.Scale/2), min(5, height), height)
	return w, h
}

func (m *Model) renderFooter(width int) string {
	status := statusStyle.Render(m.location)
	if m.frame.Notice != "" {
		status = noticeStyle.Render(m.frame.Notice) + "  " + status
	}
	line := lipgloss.NewStyle().MaxWidth(width).Render(status)
	return line + "\n" + m.help.View(m.keys)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}
