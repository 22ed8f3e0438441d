// Package tui renders the live fleet dashboard behind "fleetd top".
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // Purple
	ColorSecondary = lipgloss.Color("#06B6D4") // Cyan
	ColorSuccess   = lipgloss.Color("#10B981") // Green
	ColorWarning   = lipgloss.Color("#F59E0B") // Amber
	ColorError     = lipgloss.Color("#EF4444") // Red
	ColorText      = lipgloss.Color("#E5E7EB") // Light gray
	ColorTextMuted = lipgloss.Color("#9CA3AF") // Muted gray
	ColorBorder    = lipgloss.Color("#374151") // Dark gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)

	totalsStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Padding(0, 1)

	degradedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError).
			Padding(0, 1)

	drainStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	footerStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			MarginTop(1).
			Padding(0, 1)

	tableBorderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(ColorBorder)
)
