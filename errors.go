package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("transport error")
	// ErrResponseTimeout means the serial side did not produce the
	// delimiter within the response timeout.
	ErrResponseTimeout = errors.New("response timeout")
	// ErrStartup is matched by every *StartupError.
	ErrStartup = errors.New("startup error")

	ErrDisconnected   = errors.New("transport disconnected")
	ErrFrameOverflow  = errors.New("frame exceeds size limit")
	ErrNoDatagram     = errors.New("no datagram received")
	ErrInvalidConfig  = errors.New("invalid relay configuration")
	ErrAlreadyRunning = errors.New("relay already started")
	ErrNotRunning     = errors.New("relay not running")
)

// TransportError reports a device or socket I/O failure
type TransportError struct {
	Op  string // "serial write", "udp receive", ...
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// StartupError reports a transport that could not be opened
type StartupError struct {
	Transport string // "serial" or "udp"
	Err       error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("open %s transport: %v", e.Transport, e.Err)
}

func (e *StartupError) Unwrap() []error {
	return []error{ErrStartup, e.Err}
}

func transportErr(op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// isFatal reports whether err means a transport is gone for good
func isFatal(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
