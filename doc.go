// Package relay bridges a UDP socket and a serial device so that network
// peers can talk to a line-oriented instrument.
//
// Every request datagram is written to the serial device as-is, and the
// device output up to and including the response delimiter (carriage return
// by default) is sent back to the peer that asked. Only one exchange is ever
// in flight on the serial line. Output the device produces on its own, with
// no request pending, is drained before each exchange so that it is never
// mistaken for a response.
//
// # Basic Usage
//
// Run a relay with the stock configuration (UDP 0.0.0.0:11880, /dev/ttyFT0
// at 115200 8N1):
//
//	r, err := relay.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := r.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration Options
//
// Use functional options for custom configuration:
//
//	r, err := relay.New(
//	    relay.WithDevice("/dev/ttyUSB0"),
//	    relay.WithListenAddr("127.0.0.1", 9000),
//	    relay.WithResponseTimeout(250*time.Millisecond),
//	    relay.WithForwardAddr("10.0.0.5:9001"),
//	    relay.WithLogger(zerolog.New(os.Stderr)),
//	)
//
// # Timeouts
//
// A request whose response delimiter does not arrive within the response
// timeout gets no reply; the bytes received so far are discarded, counted and
// logged, and the relay goes on with the next datagram. WithTimeoutReply sets
// a sentinel datagram to send instead.
//
// # Lifecycle
//
// A relay moves through INIT, RUNNING, SHUTTING_DOWN and STOPPED. Cancelling
// the context passed to Run, or calling Stop, ends the loop at the next cycle
// boundary; an exchange that already started runs to completion first. Both
// transports are closed on every exit path.
//
// # Observing
//
// Register an Observer to receive an Event for every request, response,
// timeout, drained chunk and state change. Stats returns running counters.
//
// # Error Handling
//
// Transport failures are *TransportError values matching ErrTransport; a
// lost device or closed socket additionally matches ErrDisconnected and ends
// Run. Failure to open either transport is a *StartupError:
//
//	err := r.Run(ctx)
//	var se *relay.StartupError
//	if errors.As(err, &se) {
//	    // se.Transport is "serial" or "udp"
//	}
package relay
