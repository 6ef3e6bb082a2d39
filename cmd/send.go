/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	relay "github.com/allbin/serial-relay"
	"github.com/allbin/serial-relay/internal/tui/colors"
	"github.com/allbin/serial-relay/internal/tui/components"
)

// errNoReply is returned when the relay stays silent for the whole wait
var errNoReply = errors.New("no reply")

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <host:port> [data]",
	Short: "Send one request to a running relay and print the reply",
	Long: `Send a single request datagram to a relay and wait for its reply.

Data can be provided as:
- Command line argument: send 127.0.0.1:11880 "PING\r"
- From stdin (pipe): printf 'PING\r' | serial-relay send 127.0.0.1:11880
- Interactive mode: serial-relay send 127.0.0.1:11880 (prompts for input)

Escapes such as \r in the argument are turned into bytes. With --hex the
data is read as hexadecimal instead.

A relay sends nothing back when the device does not answer in time, so the
command gives up after --wait.

Example usage:
  serial-relay send 127.0.0.1:11880 'PING\r'
  serial-relay send 10.0.0.7:11880 --hex '50 49 4e 47 0d'
  serial-relay send 127.0.0.1:11880 --wait 2s`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := args[0]
		hexMode, _ := cmd.Flags().GetBool("hex")
		wait, _ := cmd.Flags().GetDuration("wait")

		var data string
		if len(args) == 2 {
			data = args[1]
		} else {
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				data = promptForData()
			} else {
				in, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				data = string(in)
			}
		}

		payload, err := requestBytes(data, hexMode)
		if err != nil {
			return err
		}

		infoStyle := lipgloss.NewStyle().Foreground(colors.Blue).Bold(true)
		successStyle := lipgloss.NewStyle().Foreground(colors.Green).Bold(true)
		errorStyle := lipgloss.NewStyle().Foreground(colors.Red).Bold(true)

		fmt.Printf("%s %s -> %s\n", infoStyle.Render("⚡"), relay.Frame(payload), addr)

		start := time.Now()
		reply, err := sendRequest(addr, payload, wait)
		if err != nil {
			return fmt.Errorf("%s %w", errorStyle.Render("✗"), err)
		}

		fmt.Printf("%s %s (%d bytes, %s)\n",
			successStyle.Render("✓"),
			relay.Frame(reply),
			len(reply),
			time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '50494e470d')")
	sendCmd.Flags().DurationP("wait", "w", 3*time.Second, "How long to wait for a reply")
}

func promptForData() string {
	promptStyle := lipgloss.NewStyle().Bold(true).Foreground(colors.Mauve)
	fmt.Print(promptStyle.Render("Enter request: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		// the typed line ends where the device's delimiter usually goes
		return scanner.Text() + "\r"
	}
	return ""
}

// requestBytes turns the user's input into the datagram payload
func requestBytes(data string, hexMode bool) ([]byte, error) {
	if hexMode {
		b, err := components.ParseHex(data)
		if err != nil {
			return nil, fmt.Errorf("invalid hex data: %w", err)
		}
		return b, nil
	}
	if data == "" {
		return nil, components.ErrEmptyRequest
	}
	quoted := `"` + strings.ReplaceAll(data, `"`, `\"`) + `"`
	if u, err := strconv.Unquote(quoted); err == nil {
		return []byte(u), nil
	}
	return []byte(data), nil
}

// sendRequest sends one datagram to addr and returns the first datagram
// that comes back within wait
func sendRequest(addr string, data []byte, wait time.Duration) ([]byte, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return nil, err
	}

	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("%w within %s", errNoReply, wait)
		}
		return nil, fmt.Errorf("receive: %w", err)
	}
	return buf[:n], nil
}
