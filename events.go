package relay

import (
	"net"
	"time"
)

// EventKind identifies what happened in the relay
type EventKind int

const (
	EventState       EventKind = iota // lifecycle state changed
	EventRequest                      // datagram received from a peer
	EventWritten                      // request written to the serial device
	EventResponse                     // response returned to the peer
	EventTimeout                      // no delimiter within the response timeout
	EventUnsolicited                  // device output drained outside an exchange
	EventDropped                      // bytes discarded
	EventError                        // exchange or drain failed
)

func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventRequest:
		return "request"
	case EventWritten:
		return "written"
	case EventResponse:
		return "response"
	case EventTimeout:
		return "timeout"
	case EventUnsolicited:
		return "unsolicited"
	case EventDropped:
		return "dropped"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one observable step of the relay
type Event struct {
	Kind     EventKind
	Time     time.Time
	Exchange string   // correlation id, empty outside an exchange
	Peer     net.Addr // requesting peer, if any
	Data     Frame
	State    State  // for EventState
	Reason   string // for EventDropped: why the bytes were discarded
	Err      error
}

// Observer receives relay events. Observe is called from the relay worker
// and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
