package hub

import (
	"fmt"
)

// distanceFloor is the raw reading of the WeDo distance sensor with nothing
// in front of it pressed right up to the lens.
const distanceFloor = 69

// DistanceValue is a decoded distance sensor reading.
type DistanceValue struct {
	raw byte
}

// Raw returns the value byte as read from the hub.
func (d DistanceValue) Raw() byte { return d.raw }

// Cm returns the measured distance in centimeters. The sensor bottoms out
// at 0 and tops out around 30 cm.
func (d DistanceValue) Cm() int {
	cm := int(d.raw) - distanceFloor
	if cm < 0 {
		return 0
	}
	return cm
}

// String renders the reading for listings.
func (d DistanceValue) String() string {
	return fmt.Sprintf("%dcm", d.Cm())
}

// TiltDirection is the direction a tilt sensor reports.
type TiltDirection uint8

const (
	// TiltNone means the sensor sits level.
	TiltNone TiltDirection = iota

	// TiltBackward means the sensor leans back.
	TiltBackward

	// TiltRight means the sensor leans right.
	TiltRight

	// TiltForward means the sensor leans forward.
	TiltForward

	// TiltLeft means the sensor leans left.
	TiltLeft
)

// String returns the direction name.
func (t TiltDirection) String() string {
	switch t {
	case TiltNone:
		return "NO_TILT"
	case TiltBackward:
		return "BACKWARD"
	case TiltRight:
		return "RIGHT"
	case TiltForward:
		return "FORWARD"
	case TiltLeft:
		return "LEFT"
	default:
		return "UNKNOWN"
	}
}

// TiltValue is a decoded tilt sensor reading.
type TiltValue struct {
	raw byte
}

// Raw returns the value byte as read from the hub.
func (t TiltValue) Raw() byte { return t.raw }

// Direction maps the raw reading onto one of the five directions the WeDo
// tilt sensor distinguishes. The sensor reports each direction as a band of
// roughly fifty raw values.
func (t TiltValue) Direction() TiltDirection {
	switch {
	case t.raw < 49:
		return TiltNone
	case t.raw < 99:
		return TiltBackward
	case t.raw < 149:
		return TiltRight
	case t.raw < 199:
		return TiltForward
	default:
		return TiltLeft
	}
}

// String renders the reading for listings.
func (t TiltValue) String() string {
	return t.Direction().String()
}
