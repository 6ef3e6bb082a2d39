package cmd

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/serial-relay/internal/config"
	"github.com/allbin/serial-relay/internal/serialport"
)

// udpEcho answers every datagram with reply(datagram)
func udpEcho(t *testing.T, reply func([]byte) []byte) string {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, peer, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if out := reply(buf[:n]); out != nil {
				conn.WriteTo(out, peer)
			}
		}
	}()
	return conn.LocalAddr().String()
}

func TestSendRequest(t *testing.T) {
	addr := udpEcho(t, func(b []byte) []byte {
		return append([]byte("OK "), b...)
	})

	reply, err := sendRequest(addr, []byte("PING\r"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("OK PING\r"), reply)
}

func TestSendRequestNoReply(t *testing.T) {
	addr := udpEcho(t, func([]byte) []byte { return nil })

	start := time.Now()
	_, err := sendRequest(addr, []byte("PING\r"), 50*time.Millisecond)
	assert.ErrorIs(t, err, errNoReply)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRequestBytes(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		hex     bool
		want    []byte
		wantErr bool
	}{
		{"plain", "PING", false, []byte("PING"), false},
		{"escapes", `PING\r`, false, []byte("PING\r"), false},
		{"quotes kept", `say "hi"`, false, []byte(`say "hi"`), false},
		{"hex", "50 49 0x4e 47 0d", true, []byte("PING\r"), false},
		{"bad hex", "5g", true, nil, true},
		{"odd hex", "504", true, nil, true},
		{"empty", "", false, nil, true},
		{"empty hex", "  ", true, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := requestBytes(tt.data, tt.hex)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLogging(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	var buf bytes.Buffer
	require.NoError(t, setupLogging(&config.Config{LogLevel: "debug", LogFormat: "json"}, &buf))
	log.Debug().Str("device", "/dev/ttyFT0").Msg("opened")
	assert.Contains(t, buf.String(), `"device":"/dev/ttyFT0"`)
	assert.Contains(t, buf.String(), `"message":"opened"`)

	buf.Reset()
	require.NoError(t, setupLogging(&config.Config{LogLevel: "warn", LogFormat: "console"}, &buf))
	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	assert.Error(t, setupLogging(&config.Config{LogLevel: "info", LogFormat: "xml"}, &buf))
	assert.Error(t, setupLogging(&config.Config{LogLevel: "chatty", LogFormat: "json"}, &buf))
}

func TestPortMatches(t *testing.T) {
	ftdi := &serialport.PortInfo{Name: "ttyUSB0", Path: "/dev/ttyUSB0", VendorID: "0403", ProductID: "6001"}
	alias := &serialport.PortInfo{Name: "ttyFT0", Path: "/dev/ttyFT0"}
	uart := &serialport.PortInfo{Name: "ttyS0", Path: "/dev/ttyS0"}
	pi := &serialport.PortInfo{Name: "ttyAMA0", Path: "/dev/ttyAMA0"}

	tests := []struct {
		info   *serialport.PortInfo
		filter string
		want   bool
	}{
		{ftdi, "usb", true},
		{ftdi, "ftdi", true},
		{alias, "ftdi", true},
		{uart, "ftdi", false},
		{uart, "standard", true},
		{uart, "usb", false},
		{pi, "arm", true},
		{pi, "standard", false},
		{pi, "bogus", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, portMatches(tt.info, tt.filter), "%s/%s", tt.info.Name, tt.filter)
	}
}

func TestFilterPortsAll(t *testing.T) {
	ports := []string{"/dev/ttyS0", "/dev/ttyUSB0"}
	assert.Equal(t, ports, filterPorts(ports, ""))
	assert.Equal(t, ports, filterPorts(ports, "ALL"))
}
