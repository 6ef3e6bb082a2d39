package relay

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Frame is one logical message: a delimiter-terminated serial response, a
// request datagram or a chunk of unsolicited device output.
type Frame []byte

// String returns the frame as a quoted Go string
func (f Frame) String() string {
	return strconv.Quote(string(f))
}

// Hex returns the frame as space-separated hex bytes
func (f Frame) Hex() string {
	return fmt.Sprintf("% X", []byte(f))
}

// Datagram is one request received from a network peer
type Datagram struct {
	Data Frame
	Peer net.Addr
	// Dropped counts bytes beyond the maximum datagram size that were cut off
	Dropped int
}

// SerialTransport is a byte stream to a serial device.
//
// Errors are *TransportError values; device loss also matches ErrDisconnected.
type SerialTransport interface {
	// ReadAvailable returns at most limit bytes that are available without
	// waiting. An empty frame means nothing was waiting.
	ReadAvailable(limit int) (Frame, error)

	// ReadUntil returns bytes up to and including delim. When the delimiter
	// does not arrive within timeout it returns the bytes collected so far
	// with ErrResponseTimeout; when limit bytes arrive first it returns them
	// with ErrFrameOverflow. Either way those bytes are no longer buffered.
	// Bytes after the delimiter stay buffered for the next read.
	ReadUntil(delim byte, limit int, timeout time.Duration) (Frame, error)

	// Write writes the whole frame and returns the count written
	Write(f Frame) (int, error)

	Close() error
}

// DatagramTransport is a datagram socket facing the network peers
type DatagramTransport interface {
	// ReceiveDatagram waits up to wait for one datagram. It returns
	// ErrNoDatagram when nothing arrives in time.
	ReceiveDatagram(wait time.Duration) (Datagram, error)

	// SendDatagram sends f to dst
	SendDatagram(f Frame, dst net.Addr) error

	LocalAddr() net.Addr
	Close() error
}
