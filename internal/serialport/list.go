package serialport

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	devDir   = "/dev"
	sysfsDir = "/sys"
)

// Device name patterns that identify communication-capable serial ports
var serialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
	regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
	regexp.MustCompile(`^ttyFT\d+$`),  // FTDI devices with a udev alias
	regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
	regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
	regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
	regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
	regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
	regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
}

// isSerialName reports whether a /dev entry looks like a serial port
func isSerialName(name string) bool {
	for _, pattern := range serialPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// ListPorts returns the serial ports present on the system, sorted by path
func ListPorts() ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		if !isSerialName(entry.Name()) {
			continue
		}
		fullPath := filepath.Join(devDir, entry.Name())
		if isCharacterDevice(fullPath) {
			ports = append(ports, fullPath)
		}
	}

	sort.Strings(ports)
	return ports, nil
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// PortInfo describes a serial device and, for USB adapters, its USB identity
type PortInfo struct {
	Name         string
	Path         string
	Description  string
	VendorID     string
	ProductID    string
	SerialNumber string
	Manufacturer string
	Product      string
}

// IsUSB reports whether USB identity information was found
func (i *PortInfo) IsUSB() bool {
	return i.VendorID != ""
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	// Resolve udev aliases such as /dev/ttyFT0 -> /dev/ttyUSB3
	name := filepath.Base(portPath)
	if target, err := filepath.EvalSymlinks(portPath); err == nil {
		name = filepath.Base(target)
	}

	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: getPortDescription(name),
	}
	enrichUSBInfo(info, sysfsDir)

	return info, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyFT"):
		return "FTDI Serial Port"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	default:
		return "Serial Port"
	}
}

// enrichUSBInfo follows /sys/class/tty/<name>/device up the device tree to
// the USB device node and copies its identity attributes.
func enrichUSBInfo(info *PortInfo, sysRoot string) {
	dir, err := filepath.EvalSymlinks(filepath.Join(sysRoot, "class", "tty", info.Name, "device"))
	if err != nil {
		return
	}

	root := filepath.Clean(sysRoot)
	for d := dir; d != root && d != "/" && d != "."; d = filepath.Dir(d) {
		vid := readSysfsFile(filepath.Join(d, "idVendor"))
		if vid == "" {
			continue
		}
		info.VendorID = vid
		info.ProductID = readSysfsFile(filepath.Join(d, "idProduct"))
		info.SerialNumber = readSysfsFile(filepath.Join(d, "serial"))
		info.Manufacturer = readSysfsFile(filepath.Join(d, "manufacturer"))
		info.Product = readSysfsFile(filepath.Join(d, "product"))
		return
	}
}

// readSysfsFile returns the trimmed content of a sysfs attribute, or "" if unreadable
func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
