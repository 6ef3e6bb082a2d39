package relay

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	bugst "go.bug.st/serial"

	"github.com/allbin/serial-relay/internal/serialport"
)

// OpenSerial opens the configured serial device with the configured backend
func OpenSerial(cfg Config) (SerialTransport, error) {
	switch cfg.Backend {
	case BackendPortable:
		return openPortable(cfg)
	case BackendTermios, "":
		return openTermios(cfg)
	default:
		return nil, fmt.Errorf("serial backend %q: %w", cfg.Backend, ErrInvalidConfig)
	}
}

// termiosSerial adapts serialport.Port to SerialTransport
type termiosSerial struct {
	port *serialport.Port
}

func openTermios(cfg Config) (*termiosSerial, error) {
	port, err := serialport.Open(cfg.Device,
		serialport.WithBaudRate(cfg.BaudRate),
		serialport.WithDataBits(cfg.DataBits),
		serialport.WithStopBits(cfg.StopBits),
		serialport.WithParity(cfg.Parity),
		// output buffered before the open is drained and logged like any
		// other unsolicited output
		serialport.WithFlushOnOpen(false),
	)
	if err != nil {
		return nil, err
	}
	return &termiosSerial{port: port}, nil
}

func (s *termiosSerial) ReadAvailable(limit int) (Frame, error) {
	b, err := s.port.ReadAvailable(limit)
	if err != nil {
		return nil, serialErr("serial read", err)
	}
	return b, nil
}

func (s *termiosSerial) ReadUntil(delim byte, limit int, timeout time.Duration) (Frame, error) {
	b, err := s.port.ReadUntil(delim, limit, timeout)
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, serialport.ErrReadTimeout):
		return b, ErrResponseTimeout
	case errors.Is(err, serialport.ErrOverflow):
		return b, ErrFrameOverflow
	default:
		return nil, serialErr("serial read", err)
	}
}

func (s *termiosSerial) Write(f Frame) (int, error) {
	n, err := s.port.Write(f)
	if err != nil {
		return n, serialErr("serial write", err)
	}
	// the response timeout starts once the request is on the wire
	if err := s.port.Drain(); err != nil {
		return n, serialErr("serial drain", err)
	}
	return n, nil
}

func (s *termiosSerial) Close() error {
	return s.port.Close()
}

// serialErr wraps a serial port error, marking device loss
func serialErr(op string, err error) error {
	if errors.Is(err, serialport.ErrDisconnected) || errors.Is(err, serialport.ErrPortClosed) {
		err = fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	return &TransportError{Op: op, Err: err}
}

// portableSerial runs on go.bug.st/serial for hosts without termios ioctls.
// The library only offers timed reads, so buffering and delimiter scanning
// happen here.
type portableSerial struct {
	port    bugst.Port
	pending []byte
	buf     []byte
}

// pollSlice is the read timeout bounding a read for bytes that are already waiting
const pollSlice = time.Millisecond

func openPortable(cfg Config) (*portableSerial, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	switch cfg.Parity {
	case serialport.ParityOdd:
		mode.Parity = bugst.OddParity
	case serialport.ParityEven:
		mode.Parity = bugst.EvenParity
	}
	if cfg.StopBits == 2 {
		mode.StopBits = bugst.TwoStopBits
	}

	port, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, err
	}
	return &portableSerial{port: port, buf: make([]byte, 512)}, nil
}

func (s *portableSerial) take(n int) Frame {
	out := make(Frame, n)
	copy(out, s.pending[:n])
	s.pending = append([]byte(nil), s.pending[n:]...)
	return out
}

// fill performs one read bounded by d and appends what arrived
func (s *portableSerial) fill(d time.Duration, max int) (int, error) {
	if err := s.port.SetReadTimeout(d); err != nil {
		return 0, portableErr("serial read", err)
	}
	n, err := s.port.Read(s.buf[:min(max, len(s.buf))])
	if err != nil {
		return 0, portableErr("serial read", err)
	}
	s.pending = append(s.pending, s.buf[:n]...)
	return n, nil
}

func (s *portableSerial) ReadAvailable(limit int) (Frame, error) {
	if len(s.pending) == 0 {
		if _, err := s.fill(pollSlice, limit); err != nil {
			return nil, err
		}
	}
	return s.take(min(limit, len(s.pending))), nil
}

func (s *portableSerial) ReadUntil(delim byte, limit int, timeout time.Duration) (Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		if i := bytes.IndexByte(s.pending, delim); i >= 0 && i < limit {
			return s.take(i + 1), nil
		}
		if len(s.pending) >= limit {
			return s.take(limit), ErrFrameOverflow
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return s.take(len(s.pending)), ErrResponseTimeout
		}
		if _, err := s.fill(remaining, limit-len(s.pending)); err != nil {
			return nil, err
		}
	}
}

func (s *portableSerial) Write(f Frame) (int, error) {
	written := 0
	for written < len(f) {
		n, err := s.port.Write(f[written:])
		if err != nil {
			return written, portableErr("serial write", err)
		}
		written += n
	}
	return written, nil
}

func (s *portableSerial) Close() error {
	return s.port.Close()
}

func portableErr(op string, err error) error {
	var pe *bugst.PortError
	if errors.As(err, &pe) && pe.Code() == bugst.PortClosed {
		err = fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	return &TransportError{Op: op, Err: err}
}
