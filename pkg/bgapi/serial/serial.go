// Package serial opens the physical tty of a BLE112 dongle.
package serial

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// BaudRate is the fixed rate the BLE112 USB CDC firmware runs at.
const BaudRate = 115200

// Open opens the dongle tty, e.g. "/dev/ttyACM0" or "COM3", configured for
// BGAPI traffic (115200 8N1). The returned link is handed to bgapi.NewConn;
// closing it unblocks the read loop.
func Open(port string) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open dongle port %s: %w", port, err)
	}
	return p, nil
}
