package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles shared by the panes.
type Styles struct {
	Title      lipgloss.Style
	Dir        lipgloss.Style
	File       lipgloss.Style
	Selected   lipgloss.Style
	Cursor     lipgloss.Style
	Status     lipgloss.Style
	Error      lipgloss.Style
	Toast      lipgloss.Style
	InputLabel lipgloss.Style
	Border     lipgloss.Style
}

// DefaultStyles returns the default theme.
func DefaultStyles() *Styles {
	return &Styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Dir:        lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		File:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Selected:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Cursor:     lipgloss.NewStyle().Reverse(true),
		Status:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Toast:      lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		InputLabel: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		Border:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")),
	}
}
