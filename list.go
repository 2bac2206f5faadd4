package serialmcp

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// portPrefixes maps the device name prefixes of communication-capable
// serial devices to a human-readable description. Virtual terminals and
// pseudo-terminals never match these prefixes (plain "tty" followed by a
// digit is not listed).
var portPrefixes = []struct {
	prefix      string
	description string
}{
	{"ttyUSB", "USB Serial Port"},
	{"ttyACM", "USB CDC/ACM Device"},
	{"ttyAMA", "ARM Serial Port"},
	{"ttymxc", "i.MX Serial Port"},
	{"ttySAC", "Samsung Serial Port"},
	{"ttyTHS", "Tegra Serial Port"},
	{"ttyO", "OMAP Serial Port"},
	{"ttyS", "Standard Serial Port"},
}

// PortInfo describes one enumerated serial device.
type PortInfo struct {
	Name        string
	Path        string
	Description string
}

// ListPorts returns the available serial ports on the system, sorted by
// path. Only character devices matching a known serial prefix are included.
func ListPorts() ([]PortInfo, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}

	var ports []PortInfo
	for _, entry := range entries {
		name := entry.Name()
		desc, ok := classifyPortName(name)
		if !ok {
			continue
		}
		path := filepath.Join("/dev", name)
		if !isCharacterDevice(path) {
			continue
		}
		ports = append(ports, PortInfo{
			Name:        name,
			Path:        path,
			Description: desc,
		})
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Path < ports[j].Path })
	return ports, nil
}

// classifyPortName reports whether name looks like a serial device and, if
// so, what kind. The prefix must be followed by at least one digit, which
// keeps devices like ttyS0 in and names like ttySomething out.
func classifyPortName(name string) (string, bool) {
	for _, p := range portPrefixes {
		rest, ok := strings.CutPrefix(name, p.prefix)
		if !ok || rest == "" {
			continue
		}
		if allDigits(rest) {
			return p.description, true
		}
	}
	return "", false
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
