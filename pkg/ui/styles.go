package ui

import "github.com/charmbracelet/lipgloss"

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonOrange  = lipgloss.Color("#FF6700")
	alertRed    = lipgloss.Color("#FF0000")
	dimWhite    = lipgloss.Color("#B0B0B0")

	logoStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(neonMagenta).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(neonMagenta).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(neonYellow)

	successStyle = lipgloss.NewStyle().
			Foreground(neonGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(alertRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(neonOrange).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Faint(true)

	progressFullStyle  = lipgloss.NewStyle().Foreground(neonGreen)
	progressEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
)

// Color helpers for inline text
var (
	Cyan    = lipgloss.NewStyle().Foreground(neonCyan).Render
	Yellow  = lipgloss.NewStyle().Foreground(neonYellow).Render
	Red     = lipgloss.NewStyle().Foreground(alertRed).Render
	Green   = lipgloss.NewStyle().Foreground(neonGreen).Render
	Magenta = lipgloss.NewStyle().Foreground(neonMagenta).Render
	Dim     = dimStyle.Render
)
