package styles

import (
	"github.com/charmbracelet/lipgloss"

	relay "github.com/allbin/serial-relay"
	"github.com/allbin/serial-relay/internal/tui/colors"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red)

	MutedStyle = lipgloss.NewStyle().
			Foreground(colors.Overlay0)
)

// StateColor returns the badge background for a relay state
func StateColor(s relay.State) lipgloss.Color {
	switch s {
	case relay.StateRunning:
		return colors.Green
	case relay.StateInit:
		return colors.Yellow
	case relay.StateShuttingDown:
		return colors.Peach
	default:
		return colors.Red
	}
}

// StateBadge renders the relay state the way an editor shows its mode
func StateBadge(s relay.State) string {
	return lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(StateColor(s)).
		Bold(true).
		Padding(0, 1).
		Render(s.String())
}
