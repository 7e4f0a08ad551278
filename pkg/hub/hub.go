package hub

import (
	"fmt"
	"strings"
)

// Hub is one robotics hub: a WeDo hub on USB or an SBrick over BLE.
// Immutable once constructed.
type Hub struct {
	// Address is the stable identity of the hub: a USB device path for
	// WeDo hubs, a hardware address for SBricks.
	Address string

	// Label is the human-readable name, with firmware version for hubs
	// that report one.
	Label string

	// Bricks are the hub's connectors in port order.
	Bricks [PortsPerHub]Brick
}

// New creates a hub with the given bricks.
func New(address, label string, bricks [PortsPerHub]Brick) Hub {
	return Hub{Address: address, Label: label, Bricks: bricks}
}

// NewUnknownPorts creates a hub whose connectors cannot be enumerated, as
// with SBricks: all ports are present but marked Unknown.
func NewUnknownPorts(address, label string) Hub {
	var bricks [PortsPerHub]Brick
	for i := range bricks {
		bricks[i] = NewBrick(byte(FirstPort+i), Unknown)
	}
	return Hub{Address: address, Label: label, Bricks: bricks}
}

// String renders the hub and its bricks for listings.
func (h Hub) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)", h.Label, h.Address)
	for _, b := range h.Bricks {
		sb.WriteString(" ")
		sb.WriteString(b.String())
	}
	return sb.String()
}
