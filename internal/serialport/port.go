package serialport

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// readChunk is the largest single read(2) issued against the device
const readChunk = 512

// Port is an open termios serial device.
//
// Bytes read from the device but not yet handed to a caller (for example
// the tail following a delimiter) are kept in an internal buffer and are
// served first by the next ReadAvailable or ReadUntil call.
type Port struct {
	mu     sync.RWMutex // guards fd and closed
	fd     int
	path   string
	config Config
	closed bool

	rmu     sync.Mutex // serialises readers and guards pending
	pending []byte
}

var baudRates = map[int]uint32{
	1200:    unix.B1200,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

// baudConstant converts an integer baud rate to the termios constant
func baudConstant(rate int) (uint32, error) {
	b, ok := baudRates[rate]
	if !ok {
		return 0, ErrInvalidBaudRate
	}
	return b, nil
}

// Open opens a serial device in raw mode with the given options
func Open(device string, opts ...Option) (*Port, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}

	// O_NONBLOCK keeps open(2) from waiting on carrier detect; it is cleared
	// again once CLOCAL is set.
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, classifyOpenError(err))
	}

	if err := configurePort(fd, config); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", device, err)
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", device, err)
	}

	if config.FlushOnOpen {
		if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("flush %s: %w", device, err)
		}
	}

	return &Port{
		fd:     fd,
		path:   device,
		config: config,
	}, nil
}

// configurePort puts the tty in raw mode. Reads never block in the kernel
// (VMIN=0, VTIME=0); waiting is done with poll(2) so every read is bounded.
func configurePort(fd int, config Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	baud, err := baudConstant(config.BaudRate)
	if err != nil {
		return err
	}

	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0
	termios.Cflag = unix.CREAD | unix.CLOCAL | baud

	switch config.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}

	if config.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	}

	switch config.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	}

	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0
	termios.Ispeed = baud
	termios.Ospeed = baud

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

// Path returns the device path the port was opened with
func (p *Port) Path() string {
	return p.path
}

// Config returns the line settings in effect
func (p *Port) Config() Config {
	return p.config
}

// Close closes the serial port
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.closed = true
	return unix.Close(p.fd)
}

// InWaiting reports how many bytes can be read without blocking
func (p *Port) InWaiting() (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, ErrPortClosed
	}

	p.rmu.Lock()
	defer p.rmu.Unlock()

	n, err := unix.IoctlGetInt(p.fd, unix.TIOCINQ)
	if err != nil {
		return 0, classifyIOError(err)
	}
	return n + len(p.pending), nil
}

// ReadAvailable returns at most limit bytes that are already available,
// without waiting. An empty result means nothing was waiting.
func (p *Port) ReadAvailable(limit int) ([]byte, error) {
	if limit <= 0 {
		return nil, ErrInvalidConfig
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPortClosed
	}

	p.rmu.Lock()
	defer p.rmu.Unlock()

	if len(p.pending) > 0 {
		return p.takePending(min(limit, len(p.pending))), nil
	}

	waiting, err := unix.IoctlGetInt(p.fd, unix.TIOCINQ)
	if err != nil {
		return nil, classifyIOError(err)
	}
	if waiting == 0 {
		return nil, nil
	}

	buf := make([]byte, min(waiting, limit))
	n, err := p.read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// ReadUntil reads up to and including delim.
//
// If the delimiter does not arrive within timeout the bytes collected so far
// are returned with ErrReadTimeout; if limit bytes arrive without a
// delimiter they are returned with ErrOverflow. In both cases the port
// forgets those bytes. Bytes following the delimiter stay buffered.
func (p *Port) ReadUntil(delim byte, limit int, timeout time.Duration) ([]byte, error) {
	if limit <= 0 {
		return nil, ErrInvalidConfig
	}
	deadline := time.Now().Add(timeout)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPortClosed
	}

	p.rmu.Lock()
	defer p.rmu.Unlock()

	buf := make([]byte, readChunk)
	for {
		if i := bytes.IndexByte(p.pending, delim); i >= 0 && i < limit {
			return p.takePending(i + 1), nil
		}
		if len(p.pending) >= limit {
			return p.takePending(limit), ErrOverflow
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return p.takePending(len(p.pending)), ErrReadTimeout
		}

		ready, err := p.waitReadable(remaining)
		if err != nil {
			return nil, err
		}
		if !ready {
			continue
		}

		want := min(readChunk, limit-len(p.pending))
		n, err := p.read(buf[:want])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// readable with nothing to read is a hang-up
			return nil, &disconnectError{err: io.EOF}
		}
		p.pending = append(p.pending, buf[:n]...)
	}
}

// takePending removes and returns the first n pending bytes. Caller holds rmu.
func (p *Port) takePending(n int) []byte {
	out := make([]byte, n)
	copy(out, p.pending[:n])
	if n == len(p.pending) {
		p.pending = nil
	} else {
		p.pending = append([]byte(nil), p.pending[n:]...)
	}
	return out
}

// waitReadable polls the fd for input for at most d
func (p *Port) waitReadable(d time.Duration) (bool, error) {
	ms := int((d + time.Millisecond - 1) / time.Millisecond)
	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}

	n, err := unix.Poll(fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, classifyIOError(err)
	}
	if n == 0 {
		return false, nil
	}
	if fds[0].Revents&unix.POLLIN != 0 {
		return true, nil
	}
	if fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		return false, &disconnectError{err: fmt.Errorf("poll revents 0x%x", fds[0].Revents)}
	}
	return false, nil
}

func (p *Port) read(buf []byte) (int, error) {
	for {
		n, err := unix.Read(p.fd, buf)
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return 0, classifyIOError(err)
		}
		return n, nil
	}
}

// Write writes all of data to the serial port and returns the count written
func (p *Port) Write(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	written := 0
	for written < len(data) {
		n, err := unix.Write(p.fd, data[written:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return written, classifyIOError(err)
		}
		written += n
	}
	return written, nil
}

// Drain waits until all output written to the port has been transmitted
func (p *Port) Drain() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

// FlushInput discards any unread input data, including buffered bytes
func (p *Port) FlushInput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	p.rmu.Lock()
	p.pending = nil
	p.rmu.Unlock()

	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIFLUSH)
}
