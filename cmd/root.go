/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/allbin/serial-relay/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
	vcfg    = config.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serial-relay",
	Short: "Relay UDP datagrams to a serial device and back",
	Long: `serial-relay bridges a UDP socket and a serial device.

Each datagram received is written to the device, and the device output up to
the response delimiter is sent back to the peer that asked. Output the device
produces on its own is drained and logged, or forwarded to a UDP address.

Settings are read from defaults, an optional YAML file (--config, or
serial-relay.yaml in the working directory or /etc/serial-relay),
SERIAL_RELAY_* environment variables and flags, later sources winning.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.BindFlags(vcfg, cmd.Flags()); err != nil {
			return err
		}
		loaded, used, err := config.Load(vcfg, cfgFile)
		if err != nil {
			return err
		}
		if err := setupLogging(loaded, os.Stderr); err != nil {
			return err
		}
		if used != "" {
			log.Debug().Str("file", used).Msg("loaded config")
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Registered exit handlers run on every path out.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./serial-relay.yaml, /etc/serial-relay/serial-relay.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console, json")
}

// setupLogging configures the global zerolog logger
func setupLogging(c *config.Config, out io.Writer) error {
	level, err := c.Level()
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	var w io.Writer
	switch strings.ToLower(c.LogFormat) {
	case "console", "":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	case "json":
		w = out
	default:
		return fmt.Errorf("unknown log format %q (valid: console, json)", c.LogFormat)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}
