package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	relay "github.com/allbin/serial-relay"
	"github.com/allbin/serial-relay/internal/tui/colors"
)

type DisplayMode struct {
	ShowHex   bool
	ShowASCII bool
}

// EventFormatter renders relay events as single log lines
type EventFormatter struct {
	mode DisplayMode
}

func NewEventFormatter(showHex, showASCII bool) *EventFormatter {
	return &EventFormatter{
		mode: DisplayMode{
			ShowHex:   showHex,
			ShowASCII: showASCII,
		},
	}
}

func (f *EventFormatter) ToggleHex() {
	f.mode.ShowHex = !f.mode.ShowHex
}

func (f *EventFormatter) ToggleASCII() {
	f.mode.ShowASCII = !f.mode.ShowASCII
}

// indicator returns the arrow label and color of an event kind. Arrows
// pointing up-right travel toward the device, down-left come from it.
func indicator(k relay.EventKind) (string, lipgloss.Color) {
	switch k {
	case relay.EventRequest:
		return "↗ REQ ○", colors.Yellow
	case relay.EventWritten:
		return "↗ TX ✓", colors.Green
	case relay.EventResponse:
		return "↙ RX", colors.Sky
	case relay.EventUnsolicited:
		return "↙ UNSOL", colors.Teal
	case relay.EventTimeout:
		return "⏱ TIMEOUT", colors.Red
	case relay.EventDropped:
		return "✗ DROP", colors.Peach
	case relay.EventError:
		return "✗ ERROR", colors.Red
	default:
		return "● STATE", colors.Mauve
	}
}

// printable replaces bytes outside printable ASCII with dots so device
// output can never inject terminal control sequences
func printable(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		if c >= 32 && c <= 126 {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func (f *EventFormatter) formatData(data []byte) []string {
	var parts []string
	if f.mode.ShowHex {
		parts = append(parts, fmt.Sprintf("HEX: % X", data))
	}
	if f.mode.ShowASCII {
		parts = append(parts, "ASCII: "+printable(data))
	}
	if !f.mode.ShowHex && !f.mode.ShowASCII {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(data)))
	}
	return parts
}

func (f *EventFormatter) Format(e relay.Event) string {
	label, color := indicator(e.Kind)
	ind := lipgloss.NewStyle().
		Foreground(color).
		Bold(true).
		Render(label)

	ts := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Render(fmt.Sprintf("[%s]", e.Time.Format("15:04:05.000")))

	var parts []string
	if e.Peer != nil {
		parts = append(parts, lipgloss.NewStyle().Foreground(colors.Overlay0).Render(e.Peer.String()))
	}

	switch e.Kind {
	case relay.EventState:
		parts = append(parts, e.State.String())
	case relay.EventError:
		parts = append(parts, fmt.Sprintf("%v", e.Err))
	case relay.EventDropped:
		parts = append(parts, fmt.Sprintf("%s, %d bytes", e.Reason, len(e.Data)))
	case relay.EventTimeout:
		parts = append(parts, fmt.Sprintf("no delimiter, %d bytes discarded", len(e.Data)))
	default:
		parts = append(parts, f.formatData(e.Data)...)
	}

	return fmt.Sprintf("%s %s: %s", ts, ind, strings.Join(parts, "  "))
}

func (f *EventFormatter) FormatAll(events []relay.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = f.Format(e)
	}
	return out
}
