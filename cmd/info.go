/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allbin/serial-relay/internal/serialport"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info [device]",
	Short: "Display information about the relay's serial device",
	Long: `Display information about a serial device, including USB metadata.

Without an argument the configured relay device is shown (default
/dev/ttyFT0). Aliases created by udev are resolved to the kernel device.

Examples:
  serial-relay info
  serial-relay info /dev/ttyUSB0`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portPath := cfg.Device
		if len(args) == 1 {
			portPath = args[0]
		}

		info, err := serialport.GetPortInfo(portPath)
		if err != nil {
			return fmt.Errorf("port info for %s: %w", portPath, err)
		}

		fmt.Printf("Port Information: %s\n\n", info.Path)
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Description: %s\n", info.Description)

		if info.IsUSB() {
			fmt.Println("\nUSB Device Information:")
			fmt.Printf("  Vendor ID:    %s\n", info.VendorID)
			if info.ProductID != "" {
				fmt.Printf("  Product ID:   %s\n", info.ProductID)
			}
			if info.SerialNumber != "" {
				fmt.Printf("  Serial:       %s\n", info.SerialNumber)
			}
			if info.Manufacturer != "" {
				fmt.Printf("  Manufacturer: %s\n", info.Manufacturer)
			}
			if info.Product != "" {
				fmt.Printf("  Product:      %s\n", info.Product)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
