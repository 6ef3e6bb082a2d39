// Package config loads the relay settings from defaults, an optional YAML
// file, SERIAL_RELAY_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	relay "github.com/allbin/serial-relay"
	"github.com/allbin/serial-relay/internal/serialport"
)

// EnvPrefix is prepended to every key when read from the environment
const EnvPrefix = "SERIAL_RELAY"

type Config struct {
	ListenHost      string `mapstructure:"listen_host"`
	ListenPort      int    `mapstructure:"listen_port"`
	MaxDatagramSize int    `mapstructure:"max_datagram_size"`

	Device   string `mapstructure:"device"`
	Baud     int    `mapstructure:"baud"`
	DataBits int    `mapstructure:"data_bits"`
	StopBits int    `mapstructure:"stop_bits"`
	Parity   string `mapstructure:"parity"`
	Backend  string `mapstructure:"serial_backend"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	Delimiter       int           `mapstructure:"delimiter"`
	MaxResponseSize int           `mapstructure:"max_response_size"`
	TimeoutReply    string        `mapstructure:"timeout_reply"`

	DrainChunk    int    `mapstructure:"drain_chunk"`
	DrainCap      int    `mapstructure:"drain_cap"`
	DrainMaxReads int    `mapstructure:"drain_max_reads"`
	ForwardAddr   string `mapstructure:"forward_addr"`

	PollInterval         time.Duration `mapstructure:"poll_interval"`
	MaxConsecutiveErrors int           `mapstructure:"max_consecutive_errors"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"host":          "listen_host",
	"port":          "listen_port",
	"max-datagram":  "max_datagram_size",
	"device":        "device",
	"baud":          "baud",
	"data-bits":     "data_bits",
	"stop-bits":     "stop_bits",
	"parity":        "parity",
	"backend":       "serial_backend",
	"timeout":       "read_timeout",
	"delimiter":     "delimiter",
	"timeout-reply": "timeout_reply",
	"forward":       "forward_addr",
	"poll":          "poll_interval",
	"log-level":     "log_level",
	"log-format":    "log_format",
}

// New returns a viper instance carrying the relay defaults
func New() *viper.Viper {
	d := relay.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("listen_host", d.ListenHost)
	v.SetDefault("listen_port", d.ListenPort)
	v.SetDefault("max_datagram_size", d.MaxDatagramSize)
	v.SetDefault("device", d.Device)
	v.SetDefault("baud", d.BaudRate)
	v.SetDefault("data_bits", d.DataBits)
	v.SetDefault("stop_bits", d.StopBits)
	v.SetDefault("parity", "none")
	v.SetDefault("serial_backend", string(d.Backend))
	v.SetDefault("read_timeout", d.ResponseTimeout.String())
	v.SetDefault("delimiter", int(d.Delimiter))
	v.SetDefault("max_response_size", d.MaxResponseSize)
	v.SetDefault("timeout_reply", "")
	v.SetDefault("drain_chunk", d.DrainChunk)
	v.SetDefault("drain_cap", d.DrainCap)
	v.SetDefault("drain_max_reads", d.DrainMaxReads)
	v.SetDefault("forward_addr", "")
	v.SetDefault("poll_interval", d.PollInterval.String())
	v.SetDefault("max_consecutive_errors", d.MaxConsecutiveErrors)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	return v
}

// BindFlags binds every known flag present in fs to its configuration key
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the configuration. An explicit file must exist; without one,
// serial-relay.yaml is looked up in the working directory and
// /etc/serial-relay and skipped when absent. It returns the file used, if any.
func Load(v *viper.Viper, file string) (*Config, string, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("serial-relay")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/serial-relay")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, v.ConfigFileUsed(), nil
}

// Options converts the configuration to relay options
func (c *Config) Options() ([]relay.Option, error) {
	parity, err := serialport.ParseParity(c.Parity)
	if err != nil {
		return nil, err
	}
	if c.Delimiter < 0 || c.Delimiter > 255 {
		return nil, fmt.Errorf("delimiter %d: %w", c.Delimiter, relay.ErrInvalidConfig)
	}

	return []relay.Option{
		relay.WithListenAddr(c.ListenHost, c.ListenPort),
		relay.WithMaxDatagramSize(c.MaxDatagramSize),
		relay.WithDevice(c.Device),
		relay.WithBaudRate(c.Baud),
		relay.WithFraming(c.DataBits, c.StopBits, parity),
		relay.WithBackend(relay.SerialBackend(strings.ToLower(c.Backend))),
		relay.WithResponseTimeout(c.ReadTimeout),
		relay.WithDelimiter(byte(c.Delimiter)),
		relay.WithMaxResponseSize(c.MaxResponseSize),
		relay.WithTimeoutReply([]byte(unescape(c.TimeoutReply))),
		relay.WithDrainLimits(c.DrainChunk, c.DrainCap, c.DrainMaxReads),
		relay.WithForwardAddr(c.ForwardAddr),
		relay.WithPollInterval(c.PollInterval),
		relay.WithMaxConsecutiveErrors(c.MaxConsecutiveErrors),
	}, nil
}

// unescape turns Go escapes such as \r typed on a command line into bytes.
// Values that are not valid escaped strings are used as they are.
func unescape(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}

// Level parses the configured log level
func (c *Config) Level() (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(c.LogLevel))
}
