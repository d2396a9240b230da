package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles of the screen.
type Styles struct {
	Title    lipgloss.Style
	Row      lipgloss.Style
	Selected lipgloss.Style
	Address  lipgloss.Style
	Empty    lipgloss.Style
	Menu     lipgloss.Style
	Toast    lipgloss.Style
	Warning  lipgloss.Style
	Dialog   lipgloss.Style
	Heading  lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	accent := lipgloss.Color("#7D56F4")
	muted := lipgloss.Color("#888888")

	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
		Row:      lipgloss.NewStyle().PaddingLeft(2),
		Selected: lipgloss.NewStyle().PaddingLeft(1).Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(accent),
		Address:  lipgloss.NewStyle().Foreground(muted),
		Empty:    lipgloss.NewStyle().Foreground(muted).Italic(true).PaddingLeft(2),
		Menu:     lipgloss.NewStyle().Foreground(accent).MarginTop(1),
		Toast:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#444444")).Padding(0, 1),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#AA3333")).Padding(0, 1),
		Dialog:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(1, 2),
		Heading:  lipgloss.NewStyle().Bold(true),
	}
}
