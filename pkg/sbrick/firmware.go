package sbrick

import (
	"fmt"
	"strconv"
	"strings"
)

// MinSupportedFirmware is the newest firmware that is still too old: SBricks
// must report a strictly newer version to be accepted. Pre-4.3 firmwares
// lack the fixed quick-drive characteristics this library relies on.
var MinSupportedFirmware = Firmware{Major: 4, Minor: 2}

// Firmware is a parsed "major.minor" SBrick firmware version.
type Firmware struct {
	Major int
	Minor int
}

// ParseFirmware parses the version string an SBrick reports, e.g. "4.5".
func ParseFirmware(s string) (Firmware, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return Firmware{}, fmt.Errorf("invalid firmware version %q: expected major.minor", s)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return Firmware{}, fmt.Errorf("invalid firmware version %q: bad major component", s)
	}

	minor, err := strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return Firmware{}, fmt.Errorf("invalid firmware version %q: bad minor component", s)
	}

	return Firmware{Major: major, Minor: minor}, nil
}

// NewerThan reports whether f is strictly newer than other.
func (f Firmware) NewerThan(other Firmware) bool {
	if f.Major != other.Major {
		return f.Major > other.Major
	}
	return f.Minor > other.Minor
}

// String returns the version as "major.minor".
func (f Firmware) String() string {
	return fmt.Sprintf("%d.%d", f.Major, f.Minor)
}
