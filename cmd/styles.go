package cmd

import (
	"github.com/CosmoTheDev/anonscan/models"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent   = lipgloss.Color("#14B8A6") // teal
	green    = lipgloss.Color("#22C55E")
	yellow   = lipgloss.Color("#F59E0B")
	red      = lipgloss.Color("#EF4444")
	blue     = lipgloss.Color("#38BDF8")
	slate    = lipgloss.Color("#94A3B8")
	slateDim = lipgloss.Color("#64748B")
	ink      = lipgloss.Color("#E5E7EB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ink).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(accent).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(slate).Width(12)
	dimStyle   = lipgloss.NewStyle().Foreground(slateDim)
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)

	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(red)
	highStyle     = lipgloss.NewStyle().Bold(true).Foreground(yellow)
	mediumStyle   = lipgloss.NewStyle().Foreground(blue)
	lowStyle      = lipgloss.NewStyle().Foreground(slate)
	okStyle       = lipgloss.NewStyle().Foreground(green)
	failStyle     = lipgloss.NewStyle().Bold(true).Foreground(red)
	warnStyle     = lipgloss.NewStyle().Foreground(yellow)
)

func severityStyle(s models.SeverityLevel) lipgloss.Style {
	switch s {
	case models.SeverityCritical:
		return criticalStyle
	case models.SeverityHigh:
		return highStyle
	case models.SeverityMedium:
		return mediumStyle
	default:
		return lowStyle
	}
}
