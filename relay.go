package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Relay bridges one serial device and one UDP socket.
//
// A single worker (Run) alternates between draining unsolicited device
// output and serving one request datagram. The serial line is an exclusive
// resource: the worker and any caller of Exchange take turns through the
// same one-slot semaphore, so only one exchange is ever in flight.
type Relay struct {
	cfg      Config
	log      zerolog.Logger
	observer Observer

	state   atomic.Int32
	started atomic.Bool

	// sem grants exclusive use of the transports
	sem     chan struct{}
	serial  SerialTransport
	net     DatagramTransport
	forward net.Addr

	stopMu        sync.Mutex
	stop          context.CancelFunc
	stopRequested bool
	done          chan struct{}

	stats counters
}

// New creates a relay. Transports are opened by Run.
func New(opts ...Option) (*Relay, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.SerialOpener == nil {
		cfg.SerialOpener = OpenSerial
	}
	if cfg.NetOpener == nil {
		cfg.NetOpener = ListenUDP
	}

	r := &Relay{
		cfg:      cfg,
		log:      cfg.Logger.With().Str("module", "relay").Logger(),
		observer: cfg.Observer,
		sem:      make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	r.state.Store(int32(StateInit))
	return r, nil
}

// Config returns the relay configuration
func (r *Relay) Config() Config {
	return r.cfg
}

// State returns the current lifecycle state
func (r *Relay) State() State {
	return State(r.state.Load())
}

// Stats returns a snapshot of the relay counters
func (r *Relay) Stats() Stats {
	return r.stats.snapshot()
}

// LocalAddr returns the bound UDP address once the relay is running
func (r *Relay) LocalAddr() net.Addr {
	if r.State() != StateRunning {
		return nil
	}
	return r.net.LocalAddr()
}

// Done is closed when Run has returned
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

// Stop asks the relay to shut down at the next cycle boundary. It does not
// wait; use Done for that.
func (r *Relay) Stop() {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()
	r.stopRequested = true
	if r.stop != nil {
		r.stop()
	}
}

// Run opens both transports and relays until ctx is cancelled, Stop is
// called or a transport fails for good. Transports are closed on every
// return path. A clean stop returns nil; a failed open returns a
// *StartupError.
func (r *Relay) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(r.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.stopMu.Lock()
	r.stop = cancel
	if r.stopRequested {
		cancel()
	}
	r.stopMu.Unlock()

	if err := r.open(); err != nil {
		r.log.Error().Err(err).Msg("startup failed")
		r.setState(StateStopped)
		return err
	}
	r.setState(StateRunning)

	loopErr := r.loop(ctx)
	return errors.Join(loopErr, r.shutdown())
}

func (r *Relay) open() error {
	ser, err := r.cfg.SerialOpener(r.cfg)
	if err != nil {
		return &StartupError{Transport: "serial", Err: err}
	}

	nt, err := r.cfg.NetOpener(r.cfg)
	if err != nil {
		ser.Close()
		return &StartupError{Transport: "udp", Err: err}
	}

	if r.cfg.ForwardAddr != "" {
		addr, err := net.ResolveUDPAddr("udp", r.cfg.ForwardAddr)
		if err != nil {
			nt.Close()
			ser.Close()
			return &StartupError{Transport: "forward", Err: err}
		}
		r.forward = addr
	}

	r.serial = ser
	r.net = nt

	ev := r.log.Info().
		Str("device", r.cfg.Device).
		Int("baud", r.cfg.BaudRate).
		Stringer("listen", nt.LocalAddr())
	if r.forward != nil {
		ev = ev.Stringer("forward", r.forward)
	}
	ev.Msg("transports open")
	return nil
}

func (r *Relay) loop(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			r.log.Info().Msg("stop requested")
			return nil
		}

		err := r.cycle()
		switch {
		case err == nil:
			failures = 0
		case isFatal(err):
			r.log.Error().Err(err).Msg("transport lost")
			return err
		case errors.Is(err, ErrTransport):
			failures++
			if r.cfg.MaxConsecutiveErrors > 0 && failures >= r.cfg.MaxConsecutiveErrors {
				r.log.Error().Err(err).Int("failures", failures).Msg("too many consecutive transport errors")
				return fmt.Errorf("%d consecutive transport errors: %w", failures, err)
			}
		default:
			// timeouts and overflows are per-exchange outcomes
			failures = 0
		}
	}
}

// cycle drains the device, then serves at most one datagram
func (r *Relay) cycle() error {
	if err := r.drain(); err != nil {
		return err
	}

	d, err := r.net.ReceiveDatagram(r.cfg.PollInterval)
	if errors.Is(err, ErrNoDatagram) {
		return nil
	}
	if err != nil {
		r.stats.inc(CntTransportErrors)
		r.log.Error().Err(err).Msg("receive failed")
		r.emit(Event{Kind: EventError, Err: err})
		return err
	}
	return r.serve(d)
}

func (r *Relay) shutdown() error {
	r.setState(StateShuttingDown)

	// wait out any exchange started through Exchange
	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	var errs []error
	if err := r.net.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close udp: %w", err))
	}
	if err := r.serial.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close serial: %w", err))
	}
	err := errors.Join(errs...)
	if err != nil {
		r.log.Error().Err(err).Msg("release failed")
	}

	r.setState(StateStopped)
	return err
}

func (r *Relay) setState(s State) {
	r.state.Store(int32(s))
	r.log.Debug().Stringer("state", s).Msg("state changed")
	r.emit(Event{Kind: EventState, State: s})
}

func (r *Relay) emit(e Event) {
	if r.observer == nil {
		return
	}
	e.Time = time.Now()
	r.observer.Observe(e)
}
