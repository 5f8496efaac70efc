package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run blocks on the stats dashboard until the user quits.
func Run(title string, addr string, stats StatsFunc) error {
	model := NewModel(title, addr, stats)
	program := tea.NewProgram(model, tea.WithAltScreen())

	_, err := program.Run()
	return err
}
