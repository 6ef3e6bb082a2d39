package serialport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestListPorts(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Errorf("ListPorts failed: %v", err)
	}

	for _, port := range ports {
		if !strings.HasPrefix(port, "/dev/") {
			t.Errorf("Port path doesn't start with /dev/: %s", port)
		}
		if !isCharacterDevice(port) {
			t.Errorf("Port is not a character device: %s", port)
		}
	}

	for i := 1; i < len(ports); i++ {
		if ports[i-1] > ports[i] {
			t.Errorf("Ports are not sorted: %s > %s", ports[i-1], ports[i])
		}
	}
}

func TestIsCharacterDevice(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/dev/null", true},
		{"/dev/zero", true},
		{"/tmp", false},
		{"/nonexistent", false},
	}

	for _, test := range tests {
		if got := isCharacterDevice(test.path); got != test.expected {
			t.Errorf("isCharacterDevice(%s) = %v, expected %v", test.path, got, test.expected)
		}
	}
}

func TestIsSerialName(t *testing.T) {
	tests := []struct {
		name        string
		shouldMatch bool
	}{
		{"ttyUSB0", true},
		{"ttyUSB12", true},
		{"ttyACM0", true},
		{"ttyFT0", true},
		{"ttyS0", true},
		{"ttyAMA0", true},
		{"ttyTHS1", true},
		{"tty1", false},
		{"console", false},
		{"ptmx", false},
		{"ptyp0", false},
		{"ttyUSB", false},
		{"urandom", false},
	}

	for _, tt := range tests {
		if got := isSerialName(tt.name); got != tt.shouldMatch {
			t.Errorf("isSerialName(%s) = %v, want %v", tt.name, got, tt.shouldMatch)
		}
	}
}

func TestGetPortDescription(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"ttyUSB0", "USB Serial Port"},
		{"ttyACM0", "USB CDC/ACM Device"},
		{"ttyFT0", "FTDI Serial Port"},
		{"ttyS0", "Standard Serial Port"},
		{"ttyAMA0", "ARM Serial Port"},
		{"ttymxc0", "i.MX Serial Port"},
		{"ttyO0", "OMAP Serial Port"},
		{"ttySAC0", "Samsung Serial Port"},
		{"ttyTHS0", "Tegra Serial Port"},
		{"unknown", "Serial Port"},
	}

	for _, test := range tests {
		if result := getPortDescription(test.name); result != test.expected {
			t.Errorf("getPortDescription(%s) = %s, expected %s", test.name, result, test.expected)
		}
	}
}

func TestGetPortInfo(t *testing.T) {
	info, err := GetPortInfo("/dev/null")
	if err != nil {
		t.Fatalf("GetPortInfo failed for /dev/null: %v", err)
	}
	if info.Name != "null" {
		t.Errorf("Expected name 'null', got '%s'", info.Name)
	}
	if info.Path != "/dev/null" {
		t.Errorf("Expected path '/dev/null', got '%s'", info.Path)
	}
	if info.IsUSB() {
		t.Error("/dev/null should not report USB identity")
	}

	if _, err := GetPortInfo("/dev/nonexistent"); err != ErrDeviceNotFound {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestReadSysfsFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		content  *string
		expected string
	}{
		{"normal file", ptr("1234\n"), "1234"},
		{"file with spaces", ptr("  test value  \n"), "test value"},
		{"empty file", ptr(""), ""},
		{"nonexistent file", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.name)
			if tt.content != nil {
				if err := os.WriteFile(path, []byte(*tt.content), 0644); err != nil {
					t.Fatalf("Setup failed: %v", err)
				}
			}
			if got := readSysfsFile(path); got != tt.expected {
				t.Errorf("readSysfsFile() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEnrichUSBInfo(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// Mimic sysfs: class/tty/ttyUSB0/device -> devices/.../1-1/1-1:1.0/ttyUSB0
	usbDev := filepath.Join(root, "devices", "pci0000:00", "usb1", "1-1")
	iface := filepath.Join(usbDev, "1-1:1.0", "ttyUSB0")
	classDir := filepath.Join(root, "class", "tty", "ttyUSB0")
	for _, dir := range []string{iface, classDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	attrs := map[string]string{
		"idVendor":     "0403\n",
		"idProduct":    "6001\n",
		"serial":       "FT123456\n",
		"manufacturer": "FTDI\n",
		"product":      "FT232R USB UART\n",
	}
	for name, value := range attrs {
		if err := os.WriteFile(filepath.Join(usbDev, name), []byte(value), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(iface, filepath.Join(classDir, "device")); err != nil {
		t.Fatal(err)
	}

	info := &PortInfo{Name: "ttyUSB0"}
	enrichUSBInfo(info, root)

	if info.VendorID != "0403" || info.ProductID != "6001" {
		t.Errorf("VID/PID = %s/%s, want 0403/6001", info.VendorID, info.ProductID)
	}
	if info.SerialNumber != "FT123456" {
		t.Errorf("SerialNumber = %q", info.SerialNumber)
	}
	if info.Product != "FT232R USB UART" || info.Manufacturer != "FTDI" {
		t.Errorf("Manufacturer/Product = %q/%q", info.Manufacturer, info.Product)
	}

	missing := &PortInfo{Name: "ttyS0"}
	enrichUSBInfo(missing, root)
	if missing.IsUSB() {
		t.Error("ttyS0 has no sysfs entry and should not be USB")
	}
}

func ptr(s string) *string { return &s }
