package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	relay "github.com/allbin/serial-relay"
	"github.com/allbin/serial-relay/internal/tui/colors"
	"github.com/allbin/serial-relay/internal/tui/styles"
)

// RelayInfo is what the status bar shows about the running relay
type RelayInfo struct {
	State  relay.State
	Listen string
	Config relay.Config
	Stats  relay.Stats
	Err    error
}

type StatusBar struct {
	width int
}

func NewStatusBar() *StatusBar {
	return &StatusBar{}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

// Framing returns the line settings in "115200 8N1" notation
func Framing(cfg relay.Config) string {
	return fmt.Sprintf("%d %d%s%d", cfg.BaudRate, cfg.DataBits, cfg.Parity, cfg.StopBits)
}

// Counters returns the exchange counters in compact form
func Counters(s relay.Stats) string {
	return fmt.Sprintf("req %d  rsp %d  t/o %d  err %d  uns %dB  drop %dB",
		s.Datagrams, s.Responses, s.Timeouts, s.TransportErrors, s.DrainedBytes, s.DroppedBytes)
}

// View renders the bar: state badge, endpoints and error on the left,
// counters and serial settings on the right
func (sb *StatusBar) View(info RelayInfo, sendMode string, inserting bool) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	badge := styles.StateBadge(info.State)

	listen := info.Listen
	if listen == "" {
		listen = info.Config.ListenAddr()
	}
	endpoints := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(fmt.Sprintf("%s ⇄ %s", listen, info.Config.Device))

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	left := []string{badge, endpoints}
	if inserting {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendMode)))
	}
	if info.Err != nil {
		left = append(left, styles.ErrorStyle.Padding(0, 1).Render(info.Err.Error()))
	}
	left = append(left, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	counters := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(Counters(info.Stats))
	serial := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render("⚡ " + Framing(info.Config))
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, counters, divider, serial)

	spacerWidth := width - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
