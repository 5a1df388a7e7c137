package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	title     lipgloss.Style
	subtitle  lipgloss.Style
	text      lipgloss.Style
	muted     lipgloss.Style
	ok        lipgloss.Style
	warn      lipgloss.Style
	danger    lipgloss.Style
	info      lipgloss.Style
	highlight lipgloss.Style
	card      lipgloss.Style
	focused   lipgloss.Style
	banner    lipgloss.Style
}

func newTheme() theme {
	return theme{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#9FD3FF")),
		subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#C0C8D4")),
		text: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D7DBE0")),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6E7B88")),
		ok: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#63C17A")),
		warn: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E7B65A")),
		danger: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E06B75")),
		info: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#65B5FF")),
		highlight: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0E1116")).
			Background(lipgloss.Color("#65B5FF")),
		card: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#3D4752")).
			Padding(0, 1),
		focused: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#65B5FF")).
			Padding(0, 1),
		banner: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0E1116")).
			Background(lipgloss.Color("#E7B65A")).
			Padding(0, 1),
	}
}

// level returns the style for an outcome level.
func (t theme) level(level string) lipgloss.Style {
	switch level {
	case "success":
		return t.ok
	case "warn":
		return t.warn
	case "error":
		return t.danger
	default:
		return t.info
	}
}
