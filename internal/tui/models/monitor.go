package models

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	relay "github.com/allbin/serial-relay"
	"github.com/allbin/serial-relay/internal/tui/components"
	"github.com/allbin/serial-relay/internal/tui/keys"
)

// Relay is the part of *relay.Relay the monitor drives
type Relay interface {
	Config() relay.Config
	State() relay.State
	Stats() relay.Stats
	LocalAddr() net.Addr
	Exchange(ctx context.Context, req relay.Frame) (relay.Frame, error)
	Stop()
	Done() <-chan struct{}
}

// exchangeWait bounds how long a typed request waits for the serial line
const exchangeWait = 5 * time.Second

// EventMsg carries one relay event into the program
type EventMsg relay.Event

// RelayDoneMsg reports that the relay worker has returned
type RelayDoneMsg struct{}

type exchangeMsg struct {
	resp relay.Frame
	err  error
}

type tickMsg time.Time

// Feed is a relay.Observer that buffers events for the monitor. The relay
// worker never waits on the UI: when the buffer is full the event is
// counted and dropped.
type Feed struct {
	ch      chan relay.Event
	dropped atomic.Uint64
}

func NewFeed(size int) *Feed {
	return &Feed{ch: make(chan relay.Event, size)}
}

func (f *Feed) Observe(e relay.Event) {
	select {
	case f.ch <- e:
	default:
		f.dropped.Add(1)
	}
}

// Dropped returns how many events did not fit in the buffer
func (f *Feed) Dropped() uint64 {
	return f.dropped.Load()
}

// next waits for the following event. Once done is closed it delivers
// what is still buffered and then returns nil, ending the read loop.
func (f *Feed) next(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-f.ch:
			return EventMsg(e)
		case <-done:
			select {
			case e := <-f.ch:
				return EventMsg(e)
			default:
				return nil
			}
		}
	}
}

// MonitorModel shows relay traffic live and lets the operator inject
// requests through the relay's exchange path
type MonitorModel struct {
	relay Relay
	feed  *Feed

	log       *components.EventLog
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.MonitorKeys

	ready     bool
	inserting bool
	stopped   bool
	err       error
}

func NewMonitorModel(r Relay, feed *Feed) *MonitorModel {
	return &MonitorModel{
		relay:     r,
		feed:      feed,
		log:       components.NewEventLog(0, 0),
		statusBar: components.NewStatusBar(),
		input:     components.NewInput(),
		help:      help.New(),
		keys:      keys.NewMonitorKeys(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *MonitorModel) waitDone() tea.Cmd {
	return func() tea.Msg {
		<-m.relay.Done()
		return RelayDoneMsg{}
	}
}

func (m *MonitorModel) exchange(req []byte) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exchangeWait)
		defer cancel()
		resp, err := m.relay.Exchange(ctx, req)
		return exchangeMsg{resp: resp, err: err}
	}
}

func (m *MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.feed.next(m.relay.Done()), m.waitDone(), tick())
}

// Err returns the last error shown in the status bar
func (m *MonitorModel) Err() error {
	return m.err
}

// Events returns the number of events in the log
func (m *MonitorModel) Events() int {
	return m.log.Len()
}

func (m *MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// input box 3 lines, status bar and help 1 each
		m.log.SetSize(msg.Width, max(msg.Height-5, 1))
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case EventMsg:
		m.log.Add(relay.Event(msg))
		return m, m.feed.next(m.relay.Done())

	case tickMsg:
		return m, tick()

	case RelayDoneMsg:
		m.stopped = true
		m.inserting = false
		m.input.Blur()
		return m, nil

	case exchangeMsg:
		m.err = msg.err
		return m, nil

	case tea.MouseMsg:
		_, cmd := m.log.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.inserting {
			return m.updateInsert(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m *MonitorModel) updateInsert(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.inserting = false
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		req, err := m.input.Request()
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.input.AddToHistory(m.input.Value())
		m.input.SetValue("")
		return m, m.exchange(req)

	case key.Matches(msg, m.keys.HistoryUp):
		m.input.HistoryUp()
		return m, nil

	case key.Matches(msg, m.keys.HistoryDown):
		m.input.HistoryDown()
		return m, nil

	case key.Matches(msg, m.keys.ToggleSendMode):
		m.input.ToggleSendingMode()
		return m, nil
	}

	_, cmd := m.input.Update(msg)
	return m, cmd
}

func (m *MonitorModel) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.relay.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.InsertMode):
		if m.stopped {
			return m, nil
		}
		m.inserting = true
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Clear):
		m.log.Clear()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.ToggleHex):
		m.log.ToggleHex()

	case key.Matches(msg, m.keys.ToggleASCII):
		m.log.ToggleASCII()

	case key.Matches(msg, m.keys.ToggleSendMode):
		m.input.ToggleSendingMode()
	}
	return m, nil
}

func (m *MonitorModel) relayInfo() components.RelayInfo {
	info := components.RelayInfo{
		State:  m.relay.State(),
		Config: m.relay.Config(),
		Stats:  m.relay.Stats(),
		Err:    m.err,
	}
	if addr := m.relay.LocalAddr(); addr != nil {
		info.Listen = addr.String()
	}
	return info
}

func (m *MonitorModel) View() string {
	content := "Waiting for relay events..."
	if m.ready && m.log.Len() > 0 {
		content = m.log.View()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		content,
		m.input.View(m.inserting),
		m.statusBar.View(m.relayInfo(), m.input.SendingMode().String(), m.inserting),
		m.help.View(m.keys),
	)
}
