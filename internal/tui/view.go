package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"ticketwatch/internal/card"
	"ticketwatch/internal/model"
)

// View renders the page. Once the terminal size is known the card list is
// clipped to the rows left between the header and the footer, scrolled so
// the focused card stays on screen.
func (m Model) View() string {
	header := m.headerLines()
	footer := m.footerLines()
	body, top, bottom := m.cardLines()

	if visible := m.bodyHeight(); visible > 0 && len(body) > visible {
		vp := viewport.New(m.width, visible)
		vp.SetContent(strings.Join(body, "\n"))
		vp.SetYOffset(scrollTo(m.offset, top, bottom, visible, len(body)))
		body = strings.Split(vp.View(), "\n")
	}

	lines := append(header, body...)
	lines = append(lines, footer...)
	return strings.Join(lines, "\n")
}

func (m Model) headerLines() []string {
	var b strings.Builder
	b.WriteString(m.theme.title.Render("ticketwatch"))
	if chat := m.orch.Session().ChatID; chat != "" {
		b.WriteString(m.theme.muted.Render("  chat " + chat))
	} else {
		b.WriteString(m.theme.warn.Render("  no chat session"))
	}

	switch {
	case m.loading && len(m.cards) == 0:
		b.WriteString("\n" + m.spinner.View() + " loading listings...")
	case m.loadErr != nil:
		b.WriteString("\n" + m.theme.danger.Render("Could not load listings: "+m.loadErr.Error()))
	case m.result != nil:
		b.WriteString("\n" + m.theme.muted.Render(m.sourceLine()))
	}

	if m.alert != nil {
		b.WriteString("\n" + m.theme.banner.Render(m.alert.Message))
	}
	if !m.loading && m.loadErr == nil && len(m.cards) == 0 {
		b.WriteString("\n" + m.theme.muted.Render("No listings found."))
	}
	return strings.Split(b.String(), "\n")
}

func (m Model) footerLines() []string {
	period := m.theme.muted.Render(fmt.Sprintf("period: %ss", m.period.Value()))
	if m.editing {
		period = m.period.View()
	}
	return strings.Split(period+"\n"+m.help.View(m.keys), "\n")
}

// cardLines renders every card and returns the lines together with the
// focused card's span [top, bottom).
func (m Model) cardLines() (lines []string, top, bottom int) {
	for i, c := range m.cards {
		st, ok := m.store.Get(c.Listing().URL)
		rendered := strings.Split(m.renderCard(c.View(st, ok), i == m.cursor), "\n")
		if i == m.cursor {
			top, bottom = len(lines), len(lines)+len(rendered)
		}
		lines = append(lines, rendered...)
	}
	return lines, top, bottom
}

// bodyHeight is the number of rows left for cards, or 0 before the terminal
// size is known.
func (m Model) bodyHeight() int {
	if m.height <= 0 {
		return 0
	}
	return max(m.height-len(m.headerLines())-len(m.footerLines()), 1)
}

// follow keeps the scroll offset on the focused card.
func (m *Model) follow() {
	visible := m.bodyHeight()
	if visible <= 0 {
		return
	}
	body, top, bottom := m.cardLines()
	m.offset = scrollTo(m.offset, top, bottom, visible, len(body))
}

// scrollTo returns the smallest change to offset that brings the span
// [top, bottom) into a window of visible rows over total rows. A span taller
// than the window shows its top.
func scrollTo(offset, top, bottom, visible, total int) int {
	bottom = min(bottom, top+visible)
	if top < offset {
		offset = top
	}
	if bottom > offset+visible {
		offset = bottom - visible
	}
	return max(0, min(offset, total-visible))
}

func (m Model) sourceLine() string {
	line := fmt.Sprintf("%d listings from %s", len(m.result.Items), m.result.SourceMode)
	if m.result.Fallback {
		line += " (fallback)"
	}
	if m.loading {
		line += "  " + m.spinner.View() + " reloading"
	}
	return line
}

func (m Model) renderCard(v card.View, focused bool) string {
	var lines []string

	title := m.theme.subtitle.Render(v.Title)
	if focused {
		title = m.theme.highlight.Render(v.Title)
	}
	lines = append(lines, title)

	if v.Image != "" {
		lines = append(lines, m.theme.muted.Render("image: "+v.Image))
	}
	for _, meta := range v.Meta {
		lines = append(lines, m.theme.text.Render(meta))
	}
	if v.Link != "" {
		lines = append(lines, m.theme.info.Render(v.Link))
	}
	lines = append(lines, m.theme.text.Render(v.Status))
	if v.Indicator != "" {
		lines = append(lines, m.theme.ok.Render("● "+v.Indicator))
	}

	var buttons []string
	for _, btn := range v.Buttons {
		label := "[" + btn.Label + "]"
		if !btn.Enabled {
			buttons = append(buttons, m.theme.muted.Render(label))
			continue
		}
		buttons = append(buttons, m.theme.text.Render(label))
	}
	lines = append(lines, strings.Join(buttons, " "))

	switch {
	case v.Pending:
		lines = append(lines, m.theme.info.Render(m.spinner.View()+" "+pendingLabel(v.Action)))
	case v.Feedback.Text != "":
		lines = append(lines, m.theme.level(v.Feedback.Level).Render(v.Feedback.Text))
	}

	style := m.theme.card
	if focused {
		style = m.theme.focused
	}
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func pendingLabel(action model.ActionKind) string {
	switch action {
	case model.ActionWatch:
		return "starting watch"
	case model.ActionUnwatch:
		return "stopping watch"
	case model.ActionQuickCheck:
		return "checking"
	}
	return "working"
}
