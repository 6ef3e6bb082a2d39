/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	relay "github.com/allbin/serial-relay"
	"github.com/allbin/serial-relay/internal/tui/models"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [device]",
	Short: "Run the UDP to serial relay",
	Long: `Run the relay until interrupted (Ctrl+C or SIGTERM).

Requests are served one at a time: a datagram is written to the device and
the device output up to the delimiter (carriage return by default) is sent
back. When the delimiter does not arrive within --timeout the request gets no
reply, unless --timeout-reply sets one.

With --tui the relay runs behind a live monitor showing every request,
response and unsolicited device output; requests can be typed into it too.

Example usage:
  serial-relay run
  serial-relay run /dev/ttyUSB0 --baud 9600 --port 9000
  serial-relay run --timeout 1s --timeout-reply 'ERR\r' --forward 10.0.0.5:9001
  serial-relay run --tui`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfg.Device = args[0]
		}
		useTUI, _ := cmd.Flags().GetBool("tui")

		opts, err := cfg.Options()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return runRelay(useTUI, opts...)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	d := relay.DefaultConfig()
	runCmd.Flags().String("host", d.ListenHost, "UDP listen address")
	runCmd.Flags().IntP("port", "p", d.ListenPort, "UDP listen port")
	runCmd.Flags().Int("max-datagram", d.MaxDatagramSize, "Largest request accepted; longer datagrams are truncated")
	runCmd.Flags().StringP("device", "d", d.Device, "Serial device")
	runCmd.Flags().IntP("baud", "b", d.BaudRate, "Baud rate")
	runCmd.Flags().Int("data-bits", d.DataBits, "Data bits: 5-8")
	runCmd.Flags().Int("stop-bits", d.StopBits, "Stop bits: 1 or 2")
	runCmd.Flags().String("parity", "none", "Parity: none, odd, even")
	runCmd.Flags().String("backend", string(d.Backend), "Serial implementation: termios, portable")
	runCmd.Flags().DurationP("timeout", "t", d.ResponseTimeout, "Time to wait for the response delimiter")
	runCmd.Flags().Int("delimiter", int(d.Delimiter), "Response delimiter byte value")
	runCmd.Flags().String("timeout-reply", "", "Reply sent when a request times out (default: none)")
	runCmd.Flags().String("forward", "", "Forward unsolicited device output to this UDP host:port")
	runCmd.Flags().Duration("poll", d.PollInterval, "Datagram wait per cycle; bounds shutdown latency")
	runCmd.Flags().Bool("tui", false, "Show the live relay monitor")
}

func runRelay(useTUI bool, opts ...relay.Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.Logger
	var feed *models.Feed
	if useTUI {
		feed = models.NewFeed(1024)
		opts = append(opts, relay.WithObserver(feed))
		// the terminal belongs to the monitor
		logger = zerolog.Nop()
	}
	opts = append(opts, relay.WithLogger(logger))

	r, err := relay.New(opts...)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	atexit.Register(r.Stop)

	start := time.Now()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	if useTUI {
		p := tea.NewProgram(models.NewMonitorModel(r, feed),
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
			tea.WithContext(ctx),
		)
		_, tuiErr := p.Run()
		r.Stop()
		runErr := <-errc
		if tuiErr != nil && !errors.Is(tuiErr, tea.ErrProgramKilled) {
			return errors.Join(tuiErr, runErr)
		}
		if feed.Dropped() > 0 {
			log.Warn().Uint64("events", feed.Dropped()).Msg("monitor fell behind, events not shown")
		}
		return runErr
	}

	err = <-errc
	var se *relay.StartupError
	if errors.As(err, &se) {
		return err
	}

	s := r.Stats()
	log.Info().
		Dur("uptime", time.Since(start).Round(time.Millisecond)).
		Uint64("requests", s.Datagrams).
		Uint64("responses", s.Responses).
		Uint64("timeouts", s.Timeouts).
		Uint64("errors", s.TransportErrors).
		Msg("relay stopped")
	return err
}
