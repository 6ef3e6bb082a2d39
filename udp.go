package relay

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// maxUDPPayload is large enough to read any datagram whole, so the bytes
// beyond MaxDatagramSize can be counted instead of silently lost
const maxUDPPayload = 65535

// UDPTransport is a DatagramTransport over a bound UDP socket
type UDPTransport struct {
	conn    *net.UDPConn
	maxSize int
	buf     []byte
}

var _ DatagramTransport = (*UDPTransport)(nil)

// ListenUDP binds the configured listen address
func ListenUDP(cfg Config) (DatagramTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr())
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return NewUDPTransport(conn, cfg.MaxDatagramSize), nil
}

// NewUDPTransport wraps an already bound socket
func NewUDPTransport(conn *net.UDPConn, maxDatagramSize int) *UDPTransport {
	return &UDPTransport{
		conn:    conn,
		maxSize: maxDatagramSize,
		buf:     make([]byte, maxUDPPayload),
	}
}

// ReceiveDatagram waits up to wait for one datagram
func (t *UDPTransport) ReceiveDatagram(wait time.Duration) (Datagram, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return Datagram{}, udpErr("udp receive", err)
	}

	n, peer, err := t.conn.ReadFromUDP(t.buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return Datagram{}, ErrNoDatagram
		}
		return Datagram{}, udpErr("udp receive", err)
	}

	d := Datagram{Peer: peer}
	if n > t.maxSize {
		d.Dropped = n - t.maxSize
		n = t.maxSize
	}
	d.Data = append(Frame(nil), t.buf[:n]...)
	return d, nil
}

// SendDatagram sends f to dst
func (t *UDPTransport) SendDatagram(f Frame, dst net.Addr) error {
	if _, err := t.conn.WriteTo(f, dst); err != nil {
		return udpErr("udp send", err)
	}
	return nil
}

func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

func udpErr(op string, err error) error {
	if errors.Is(err, net.ErrClosed) {
		err = fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	return &TransportError{Op: op, Err: err}
}
