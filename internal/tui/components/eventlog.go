package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	relay "github.com/allbin/serial-relay"
)

// maxEvents bounds the scrollback of the event log
const maxEvents = 2000

// EventLog is a scrolling viewport of relay events that follows the newest
type EventLog struct {
	viewport  viewport.Model
	formatter *EventFormatter
	events    []relay.Event
	lines     []string
}

func NewEventLog(width, height int) *EventLog {
	return &EventLog{
		viewport:  viewport.New(width, height),
		formatter: NewEventFormatter(true, true),
	}
}

func (l *EventLog) SetSize(width, height int) {
	l.viewport.Width = width
	l.viewport.Height = height
}

func (l *EventLog) Add(e relay.Event) {
	l.events = append(l.events, e)
	l.lines = append(l.lines, l.formatter.Format(e))
	if len(l.events) > maxEvents {
		l.events = l.events[len(l.events)-maxEvents:]
		l.lines = l.lines[len(l.lines)-maxEvents:]
	}
	l.show()
}

func (l *EventLog) Len() int {
	return len(l.events)
}

func (l *EventLog) Clear() {
	l.events = nil
	l.lines = nil
	l.viewport.SetContent("")
}

func (l *EventLog) ToggleHex() {
	l.formatter.ToggleHex()
	l.refresh()
}

func (l *EventLog) ToggleASCII() {
	l.formatter.ToggleASCII()
	l.refresh()
}

// refresh re-renders every line so display mode changes apply to history
func (l *EventLog) refresh() {
	l.lines = l.formatter.FormatAll(l.events)
	l.show()
}

func (l *EventLog) show() {
	l.viewport.SetContent(strings.Join(l.lines, "\n"))
	l.viewport.GotoBottom()
}

func (l *EventLog) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// keys stay with the monitor; only mouse and resize reach the viewport
	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		var cmd tea.Cmd
		l.viewport, cmd = l.viewport.Update(msg)
		return l.viewport, cmd
	default:
		return l.viewport, nil
	}
}

func (l *EventLog) View() string {
	return l.viewport.View()
}
