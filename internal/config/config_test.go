package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relay "github.com/allbin/serial-relay"
	"github.com/allbin/serial-relay/internal/serialport"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, used, err := Load(New(), "")
	require.NoError(t, err)
	assert.Empty(t, used)

	assert.Equal(t, "0.0.0.0", cfg.ListenHost)
	assert.Equal(t, 11880, cfg.ListenPort)
	assert.Equal(t, 10, cfg.MaxDatagramSize)
	assert.Equal(t, "/dev/ttyFT0", cfg.Device)
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, 500*time.Millisecond, cfg.ReadTimeout)
	assert.Equal(t, 13, cfg.Delimiter)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "termios", cfg.Backend)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	yaml := `
listen_port: 9000
device: /dev/ttyUSB3
baud: 9600
parity: even
read_timeout: 2s
timeout_reply: "TIMEOUT\r"
forward_addr: 127.0.0.1:9001
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, used, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 9000, cfg.ListenPort)
	assert.Equal(t, "/dev/ttyUSB3", cfg.Device)
	assert.Equal(t, 9600, cfg.Baud)
	assert.Equal(t, "even", cfg.Parity)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "TIMEOUT\r", cfg.TimeoutReply)
	assert.Equal(t, "127.0.0.1:9001", cfg.ForwardAddr)
	// untouched keys keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.ListenHost)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, _, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERIAL_RELAY_DEVICE", "/dev/ttyACM0")
	t.Setenv("SERIAL_RELAY_LISTEN_PORT", "12000")

	cfg, _, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Device)
	assert.Equal(t, 12000, cfg.ListenPort)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERIAL_RELAY_BAUD", "19200")

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.Int("baud", 115200, "")
	fs.Duration("timeout", 500*time.Millisecond, "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--baud", "57600", "--timeout", "1s"}))

	v := New()
	require.NoError(t, BindFlags(v, fs))

	cfg, _, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 57600, cfg.Baud)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
}

func TestOptions(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, _, err := Load(New(), "")
	require.NoError(t, err)
	cfg.Parity = "odd"
	cfg.Delimiter = '\n'
	cfg.TimeoutReply = "ERR"

	opts, err := cfg.Options()
	require.NoError(t, err)

	r, err := relay.New(opts...)
	require.NoError(t, err)
	rc := r.Config()
	assert.Equal(t, serialport.ParityOdd, rc.Parity)
	assert.Equal(t, byte('\n'), rc.Delimiter)
	assert.Equal(t, []byte("ERR"), rc.TimeoutReply)
	assert.Equal(t, "0.0.0.0:11880", rc.ListenAddr())
}

func TestTimeoutReplyEscapes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`ERR\r`, "ERR\r"},
		{`\x15`, "\x15"},
		{"plain", "plain"},
		{`bad"quote`, `bad"quote`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unescape(tt.in), "unescape(%q)", tt.in)
	}
}

func TestOptionsRejectBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"parity", func(c *Config) { c.Parity = "mark" }},
		{"delimiter", func(c *Config) { c.Delimiter = 300 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			cfg, _, err := Load(New(), "")
			require.NoError(t, err)
			tt.mutate(cfg)

			_, err = cfg.Options()
			assert.Error(t, err)
		})
	}
}

func TestLevel(t *testing.T) {
	cfg := &Config{LogLevel: "DEBUG"}
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	cfg.LogLevel = "loud"
	_, err = cfg.Level()
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
