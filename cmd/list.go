/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"

	"github.com/allbin/serial-relay/internal/serialport"
	"github.com/allbin/serial-relay/internal/tui/colors"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial devices the relay can open",
	Long: `List the serial devices present on the system.

This command scans /dev for communication-capable serial devices:
- USB serial adapters (ttyUSB*) and CDC/ACM devices (ttyACM*)
- FTDI adapters exposed under a udev alias (ttyFT*)
- Standard serial ports (ttyS*)
- ARM/Raspberry Pi and other SoC UARTs (ttyAMA*, ttymxc*, ...)

Virtual terminals and pseudo-terminals are excluded from the listing.

Example usage:
  serial-relay list
  serial-relay list --filter usb --table`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serialport.ListPorts()
		if err != nil {
			return fmt.Errorf("listing ports: %w", err)
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")

		ports = filterPorts(ports, filterType)
		if len(ports) == 0 {
			if filterType != "" && filterType != "all" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return nil
		}

		if tableFormat {
			fmt.Println(renderTable(ports))
		} else {
			for _, port := range ports {
				fmt.Println(port)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, ftdi, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Display ports with their USB identity in a table")
}

// filterPorts keeps the ports of the requested type
func filterPorts(ports []string, filterType string) []string {
	filterType = strings.ToLower(filterType)
	if filterType == "" || filterType == "all" {
		return ports
	}

	var filtered []string
	for _, port := range ports {
		info, err := serialport.GetPortInfo(port)
		if err != nil {
			continue
		}
		if portMatches(info, filterType) {
			filtered = append(filtered, port)
		}
	}
	return filtered
}

func portMatches(info *serialport.PortInfo, filterType string) bool {
	name := strings.ToLower(info.Name)
	switch filterType {
	case "usb":
		return info.IsUSB() || strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm")
	case "ftdi":
		// FTDI's USB vendor id
		return info.VendorID == "0403" || strings.HasPrefix(strings.ToLower(info.Path), "/dev/ttyft")
	case "standard":
		return strings.HasPrefix(name, "ttys") && !strings.HasPrefix(name, "ttysac")
	case "arm":
		return strings.HasPrefix(name, "ttyama")
	}
	return false
}

const (
	colPort    = "port"
	colType    = "type"
	colUSB     = "usb"
	colSerial  = "serial"
	colProduct = "product"
)

// renderTable renders the port list as a static bordered table
func renderTable(ports []string) string {
	columns := []table.Column{
		table.NewColumn(colPort, "Port", 16),
		table.NewColumn(colType, "Type", 22),
		table.NewColumn(colUSB, "VID:PID", 11),
		table.NewColumn(colSerial, "Serial", 14),
		table.NewColumn(colProduct, "Product", 28),
	}

	rows := make([]table.Row, 0, len(ports))
	for _, port := range ports {
		rows = append(rows, table.NewRow(portRow(port)))
	}

	t := table.New(columns).
		WithRows(rows).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(colors.Mauve)).
		WithBaseStyle(lipgloss.NewStyle().
			Foreground(colors.Text).
			BorderForeground(colors.Surface2).
			Align(lipgloss.Left))

	return fmt.Sprintf("Found %d serial port(s):\n\n%s", len(ports), t.View())
}

func portRow(port string) table.RowData {
	info, err := serialport.GetPortInfo(port)
	if err != nil {
		return table.RowData{
			colPort: port,
			colType: fmt.Sprintf("Error: %v", err),
		}
	}

	row := table.RowData{
		colPort: info.Path,
		colType: info.Description,
	}
	if info.IsUSB() {
		row[colUSB] = info.VendorID + ":" + info.ProductID
		row[colSerial] = info.SerialNumber
		row[colProduct] = strings.TrimSpace(info.Manufacturer + " " + info.Product)
	}
	return row
}
