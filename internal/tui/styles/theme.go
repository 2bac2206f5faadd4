package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialmcp/internal/tui/colors"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	StatusConnectedStyle = lipgloss.NewStyle().
				Foreground(colors.Green).
				Bold(true)

	StatusDisconnectedStyle = lipgloss.NewStyle().
				Foreground(colors.Red).
				Bold(true)

	StatusPausedStyle = lipgloss.NewStyle().
				Foreground(colors.Yellow).
				Bold(true)

	StatusSegmentStyle = lipgloss.NewStyle().
				Foreground(colors.Subtext0).
				Padding(0, 1)

	OverflowStyle = lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	HelpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface1).
			Padding(1, 2).
			Margin(1, 0)

	TableBaseStyle = lipgloss.NewStyle().
			Foreground(colors.Text).
			Align(lipgloss.Left)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(colors.Blue).
				Bold(true)
)
