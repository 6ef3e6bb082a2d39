package relay

import (
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/allbin/serial-relay/internal/serialport"
)

// SerialBackend selects the serial port implementation
type SerialBackend string

const (
	BackendTermios  SerialBackend = "termios"  // Linux termios via x/sys/unix
	BackendPortable SerialBackend = "portable" // go.bug.st/serial
)

// Config holds the configuration for a relay
type Config struct {
	// Network side
	ListenHost      string
	ListenPort      int
	MaxDatagramSize int

	// Serial side
	Device   string
	BaudRate int
	DataBits int
	StopBits int
	Parity   serialport.Parity
	Backend  SerialBackend

	// Exchange
	Delimiter       byte
	ResponseTimeout time.Duration
	MaxResponseSize int
	TimeoutReply    []byte // sent to the peer on ResponseTimeout; nil sends nothing

	// Drain
	DrainChunk    int
	DrainCap      int
	DrainMaxReads int
	ForwardAddr   string // unsolicited serial output is sent here when set

	// Lifecycle
	PollInterval         time.Duration
	MaxConsecutiveErrors int

	// Wiring; zero values select OpenSerial, ListenUDP, a no-op logger and no observer
	Logger       zerolog.Logger
	Observer     Observer
	SerialOpener func(Config) (SerialTransport, error)
	NetOpener    func(Config) (DatagramTransport, error)
}

// Option is a functional option for configuring a relay
type Option func(*Config) error

// DefaultConfig returns the configuration of the stock bridge:
// UDP 0.0.0.0:11880, /dev/ttyFT0 at 115200 8N1, CR-terminated responses.
func DefaultConfig() Config {
	return Config{
		ListenHost:           "0.0.0.0",
		ListenPort:           11880,
		MaxDatagramSize:      10,
		Device:               "/dev/ttyFT0",
		BaudRate:             115200,
		DataBits:             8,
		StopBits:             1,
		Parity:               serialport.ParityNone,
		Backend:              BackendTermios,
		Delimiter:            '\r',
		ResponseTimeout:      500 * time.Millisecond,
		MaxResponseSize:      4096,
		DrainChunk:           256,
		DrainCap:             4096,
		DrainMaxReads:        64,
		PollInterval:         100 * time.Millisecond,
		MaxConsecutiveErrors: 5,
		Logger:               zerolog.Nop(),
	}
}

// ListenAddr returns host:port for the UDP socket
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.ListenPort))
}

// validate checks cross-field constraints after all options are applied
func (c Config) validate() error {
	switch {
	case c.MaxDatagramSize <= 0,
		c.MaxResponseSize <= 0,
		c.DrainChunk <= 0,
		c.DrainCap < c.DrainChunk,
		c.DrainMaxReads <= 0,
		c.ResponseTimeout <= 0,
		c.PollInterval <= 0,
		c.MaxConsecutiveErrors < 0:
		return ErrInvalidConfig
	}
	return nil
}

// WithListenAddr sets the UDP host and port
func WithListenAddr(host string, port int) Option {
	return func(c *Config) error {
		if port < 0 || port > 65535 {
			return ErrInvalidConfig
		}
		c.ListenHost = host
		c.ListenPort = port
		return nil
	}
}

// WithMaxDatagramSize sets the largest request datagram accepted
func WithMaxDatagramSize(n int) Option {
	return func(c *Config) error {
		if n <= 0 || n > 65507 {
			return ErrInvalidConfig
		}
		c.MaxDatagramSize = n
		return nil
	}
}

// WithDevice sets the serial device path
func WithDevice(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return ErrInvalidConfig
		}
		c.Device = path
		return nil
	}
}

// WithBaudRate sets the serial baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if rate <= 0 {
			return ErrInvalidConfig
		}
		c.BaudRate = rate
		return nil
	}
}

// WithFraming sets data bits, stop bits and parity
func WithFraming(dataBits, stopBits int, parity serialport.Parity) Option {
	return func(c *Config) error {
		if dataBits < 5 || dataBits > 8 || (stopBits != 1 && stopBits != 2) {
			return ErrInvalidConfig
		}
		c.DataBits = dataBits
		c.StopBits = stopBits
		c.Parity = parity
		return nil
	}
}

// WithBackend selects the serial implementation
func WithBackend(b SerialBackend) Option {
	return func(c *Config) error {
		if b != BackendTermios && b != BackendPortable {
			return ErrInvalidConfig
		}
		c.Backend = b
		return nil
	}
}

// WithDelimiter sets the byte that terminates a serial response
func WithDelimiter(d byte) Option {
	return func(c *Config) error {
		c.Delimiter = d
		return nil
	}
}

// WithResponseTimeout bounds how long an exchange waits for the delimiter
func WithResponseTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return ErrInvalidConfig
		}
		c.ResponseTimeout = d
		return nil
	}
}

// WithMaxResponseSize bounds the bytes collected while waiting for the delimiter
func WithMaxResponseSize(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return ErrInvalidConfig
		}
		c.MaxResponseSize = n
		return nil
	}
}

// WithTimeoutReply sets a sentinel sent to the peer when its exchange times
// out. An empty reply disables it.
func WithTimeoutReply(reply []byte) Option {
	return func(c *Config) error {
		if len(reply) == 0 {
			c.TimeoutReply = nil
			return nil
		}
		c.TimeoutReply = append([]byte(nil), reply...)
		return nil
	}
}

// WithDrainLimits sets the per-read chunk, the per-cycle byte cap and the
// per-cycle read count of the drain loop
func WithDrainLimits(chunk, capBytes, maxReads int) Option {
	return func(c *Config) error {
		if chunk <= 0 || capBytes < chunk || maxReads <= 0 {
			return ErrInvalidConfig
		}
		c.DrainChunk = chunk
		c.DrainCap = capBytes
		c.DrainMaxReads = maxReads
		return nil
	}
}

// WithForwardAddr forwards unsolicited serial output to a UDP address
func WithForwardAddr(addr string) Option {
	return func(c *Config) error {
		if addr != "" {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				return ErrInvalidConfig
			}
		}
		c.ForwardAddr = addr
		return nil
	}
}

// WithPollInterval bounds how long one cycle waits for a datagram, and
// therefore how quickly a stop request is noticed
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return ErrInvalidConfig
		}
		c.PollInterval = d
		return nil
	}
}

// WithMaxConsecutiveErrors stops the relay after n cycles in a row fail
// with a transport error. Zero disables the limit.
func WithMaxConsecutiveErrors(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return ErrInvalidConfig
		}
		c.MaxConsecutiveErrors = n
		return nil
	}
}

// WithLogger sets the structured log sink
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithObserver registers a receiver for relay events
func WithObserver(o Observer) Option {
	return func(c *Config) error {
		c.Observer = o
		return nil
	}
}

// WithSerialOpener replaces the serial transport factory
func WithSerialOpener(open func(Config) (SerialTransport, error)) Option {
	return func(c *Config) error {
		if open == nil {
			return ErrInvalidConfig
		}
		c.SerialOpener = open
		return nil
	}
}

// WithNetOpener replaces the datagram transport factory
func WithNetOpener(open func(Config) (DatagramTransport, error)) Option {
	return func(c *Config) error {
		if open == nil {
			return ErrInvalidConfig
		}
		c.NetOpener = open
		return nil
	}
}
