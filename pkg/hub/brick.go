// Package hub models robotics hubs and the bricks plugged into them.
//
// A brick is, precisely, a connector on a hub: empty spots are represented
// as bricks too, of a "not connected" type. WeDo hubs report what sits on
// each connector; SBricks cannot, so their bricks stay Unknown.
package hub

import (
	"fmt"
)

// Port range shared by all hub systems.
const (
	// FirstPort is the first port letter on any hub.
	FirstPort = 'A'

	// MaxPort caps the overall port range; each system has its own limit
	// within it.
	MaxPort = 'D'
)

// PortsPerHub is the number of connectors a hub exposes.
const PortsPerHub = 4

// BrickType is the kind of brick plugged into a connector.
type BrickType uint8

const (
	// NotConnected means the connector is empty.
	NotConnected BrickType = iota

	// Motor is a motor brick.
	Motor

	// Light is a light brick.
	Light

	// Distance is a distance sensor.
	Distance

	// Tilt is a tilt sensor.
	Tilt

	// Unknown is something we cannot identify.
	Unknown
)

// String returns the brick type name.
func (t BrickType) String() string {
	switch t {
	case NotConnected:
		return "NOT_CONNECTED"
	case Motor:
		return "MOTOR"
	case Light:
		return "LIGHT"
	case Distance:
		return "DISTANCE"
	case Tilt:
		return "TILT"
	case Unknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

// Brick is one connector on a hub, with the sensor value byte last read
// from it. Brick values are immutable.
type Brick struct {
	port  byte
	typ   BrickType
	value byte
}

// NewBrick creates a brick with a zero value byte.
func NewBrick(port byte, typ BrickType) Brick {
	return NewBrickValue(port, typ, 0x00)
}

// NewBrickValue creates a brick with the value byte read from the hub.
// Panics on a port outside FirstPort..MaxPort; ports come from fixed loops,
// not external input.
func NewBrickValue(port byte, typ BrickType, value byte) Brick {
	if port < FirstPort || port > MaxPort {
		panic(fmt.Sprintf("invalid port %c", port))
	}
	return Brick{port: port, typ: typ, value: value}
}

// Port returns the capital letter designating the connector.
func (b Brick) Port() byte { return b.port }

// Type returns the kind of brick on the connector.
func (b Brick) Type() BrickType { return b.typ }

// Value returns the raw value byte read from the hub.
func (b Brick) Value() byte { return b.value }

// Distance decodes the value as a distance measurement. May only be called
// when the type is a distance sensor.
func (b Brick) Distance() DistanceValue {
	if b.typ != Distance {
		panic("not a distance sensor")
	}
	return DistanceValue{raw: b.value}
}

// Tilt decodes the value as a tilt measurement. May only be called when the
// type is a tilt sensor.
func (b Brick) Tilt() TiltValue {
	if b.typ != Tilt {
		panic("not a tilt sensor")
	}
	return TiltValue{raw: b.value}
}

// String renders the brick for listings.
func (b Brick) String() string {
	sensor := ""
	switch b.typ {
	case Distance:
		sensor = " " + b.Distance().String()
	case Tilt:
		sensor = " " + b.Tilt().String()
	}
	return fmt.Sprintf("[port %c: %s value: 0x%02x%s]", b.port, b.typ, b.value, sensor)
}
