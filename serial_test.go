package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// ptyDevice opens a pseudo-terminal pair and returns the master fd and the
// slave path, which the termios backend can open like a serial device
func ptyDevice(t *testing.T) (int, string) {
	t.Helper()

	master, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Skipf("pseudo-terminals unavailable: %v", err)
	}
	if err := unix.IoctlSetPointerInt(master, unix.TIOCSPTLCK, 0); err != nil {
		unix.Close(master)
		t.Skipf("unlockpt failed: %v", err)
	}
	n, err := unix.IoctlGetInt(master, unix.TIOCGPTN)
	if err != nil {
		unix.Close(master)
		t.Skipf("ptsname failed: %v", err)
	}
	return master, fmt.Sprintf("/dev/pts/%d", n)
}

// openOnPTY opens the slave side of a new pseudo-terminal with backend and
// returns the transport together with the master fd playing the device
func openOnPTY(t *testing.T, backend SerialBackend) (SerialTransport, int) {
	t.Helper()

	master, slave := ptyDevice(t)
	cfg := DefaultConfig()
	cfg.Device = slave
	cfg.Backend = backend

	ser, err := OpenSerial(cfg)
	if err != nil {
		unix.Close(master)
		t.Fatalf("OpenSerial(%s, %s): %v", backend, slave, err)
	}
	t.Cleanup(func() {
		ser.Close()
		unix.Close(master)
	})
	return ser, master
}

var backends = []SerialBackend{BackendTermios, BackendPortable}

func TestOpenSerialUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "usb"
	_, err := OpenSerial(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOpenSerialMissingDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = "/dev/nonexistent-relay"
	_, err := OpenSerial(cfg)
	assert.Error(t, err)
}

func TestSerialExchange(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ser, master := openOnPTY(t, backend)

			n, err := ser.Write(Frame("PING"))
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			buf := make([]byte, 16)
			got, err := unix.Read(master, buf)
			require.NoError(t, err)
			assert.Equal(t, "PING", string(buf[:got]))

			_, err = unix.Write(master, []byte("PONG\rNEXT"))
			require.NoError(t, err)

			resp, err := ser.ReadUntil('\r', 64, time.Second)
			require.NoError(t, err)
			assert.Equal(t, Frame("PONG\r"), resp)

			// the tail after the delimiter stays buffered
			rest, err := ser.ReadAvailable(64)
			require.NoError(t, err)
			assert.Equal(t, Frame("NEXT"), rest)
		})
	}
}

func TestSerialErrorMapping(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ser, master := openOnPTY(t, backend)

			_, err := unix.Write(master, []byte("part"))
			require.NoError(t, err)
			start := time.Now()
			partial, err := ser.ReadUntil('\r', 64, 50*time.Millisecond)
			assert.ErrorIs(t, err, ErrResponseTimeout)
			assert.Equal(t, Frame("part"), partial)
			assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

			// the partial bytes are gone once reported
			empty, err := ser.ReadAvailable(64)
			require.NoError(t, err)
			assert.Empty(t, empty)

			_, err = unix.Write(master, []byte("0123456789"))
			require.NoError(t, err)
			over, err := ser.ReadUntil('\r', 4, time.Second)
			assert.ErrorIs(t, err, ErrFrameOverflow)
			assert.Equal(t, Frame("0123"), over)
		})
	}
}

func TestSerialHangupIsDisconnect(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			master, slave := ptyDevice(t)
			cfg := DefaultConfig()
			cfg.Device = slave
			cfg.Backend = backend

			ser, err := OpenSerial(cfg)
			if err != nil {
				unix.Close(master)
				t.Fatalf("OpenSerial(%s, %s): %v", backend, slave, err)
			}
			defer ser.Close()

			unix.Close(master)

			_, err = ser.ReadUntil('\r', 64, time.Second)
			assert.ErrorIs(t, err, ErrTransport)
			assert.ErrorIs(t, err, ErrDisconnected)
		})
	}
}

func TestBufferedInputDrainedAtStartup(t *testing.T) {
	master, slave := ptyDevice(t)
	t.Cleanup(func() { unix.Close(master) })

	// the device talks before the relay opens it
	_, err := unix.Write(master, []byte("BOOT BANNER\r"))
	require.NoError(t, err)

	events := &eventLog{}
	r, err := New(
		WithDevice(slave),
		WithListenAddr("127.0.0.1", 0),
		WithPollInterval(10*time.Millisecond),
		WithObserver(events),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})

	require.Eventually(t, func() bool {
		return r.Stats().DrainedBytes >= uint64(len("BOOT BANNER"))
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, string(events.data(EventUnsolicited)), "BOOT BANNER")
	assert.Zero(t, r.Stats().DroppedBytes)
}
