package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lecture-chat/cli/internal/model"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	inputStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func statusStyle(s model.Status) lipgloss.Style {
	switch s {
	case model.StatusCompleted:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	case model.StatusFailed:
		return errorStyle
	case model.StatusUploaded:
		return mutedStyle
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
}
