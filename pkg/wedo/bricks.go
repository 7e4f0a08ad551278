package wedo

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/wedo-robotics/wedo-go/pkg/hub"
)

// Transport is the USB surface Bricks drives. Implemented by *USB.
type Transport interface {
	ReadAll() (map[Handle]Packet, error)
	Write(handle Handle, buf []byte) error
}

// Compile-time interface satisfaction check.
var _ Transport = (*USB)(nil)

// commandByte follows the report ID in every command report.
const commandByte = 0x40

// Bricks is the WeDo brick layer: it decodes sensor reports into the hub
// model and drives motors and lights.
//
// Writes address one connector, but the wire protocol always carries both
// connector values in a single packet. Bricks remembers the last value
// written per connector so that driving port A does not clobber port B.
type Bricks struct {
	tr  Transport
	log *slog.Logger

	mu     sync.Mutex
	actual map[Handle][2]byte
}

// NewBricks creates the brick layer on the given transport.
func NewBricks(tr Transport, log *slog.Logger) *Bricks {
	if log == nil {
		log = slog.Default()
	}
	return &Bricks{
		tr:     tr,
		log:    log,
		actual: make(map[Handle][2]byte),
	}
}

// Read snapshots all WeDo hubs on the bus with their current bricks. A WeDo
// hub has two connectors; the remaining ports report NotConnected.
func (b *Bricks) Read() ([]hub.Hub, error) {
	packets, err := b.tr.ReadAll()
	if err != nil {
		return nil, err
	}

	hubs := make([]hub.Hub, 0, len(packets))
	for handle, p := range packets {
		hubs = append(hubs, decodeHub(handle, p))
	}
	return hubs, nil
}

// decodeHub turns one sensor report into the hub model.
func decodeHub(handle Handle, p Packet) hub.Hub {
	var bricks [hub.PortsPerHub]hub.Brick
	bricks[0] = hub.NewBrickValue('A', brickType(p.IDA()), p.ValueA())
	bricks[1] = hub.NewBrickValue('B', brickType(p.IDB()), p.ValueB())
	bricks[2] = hub.NewBrick('C', hub.NotConnected)
	bricks[3] = hub.NewBrick('D', hub.NotConnected)
	return hub.New(handle.Path, handle.ProductName, bricks)
}

// brickType maps the identity byte a hub reports for a connector to the
// brick sitting on it. The byte wanders a little between hub revisions, so
// each type covers a small range of observed values.
func brickType(id byte) hub.BrickType {
	switch id {
	case 0xe6, 0xe7:
		return hub.NotConnected
	case 0xee, 0xef, 0xf0:
		return hub.Motor
	case 0xcb, 0xcc, 0xcd:
		return hub.Light
	case 0xb0, 0xb1, 0xb2, 0xb3:
		return hub.Distance
	case 0x26, 0x27:
		return hub.Tilt
	default:
		return hub.Unknown
	}
}

// Reset zeroes both connectors on every hub, stopping all motors and
// lights.
func (b *Bricks) Reset() error {
	return b.set(true, true, 0x00)
}

// Motor drives the motors on both connectors of every hub. Positive speeds
// run one way, negative the other, zero stops.
func (b *Bricks) Motor(speed int8) error {
	return b.set(true, true, byte(speed))
}

// MotorA drives the motors on connector A of every hub.
func (b *Bricks) MotorA(speed int8) error {
	return b.set(true, false, byte(speed))
}

// MotorB drives the motors on connector B of every hub.
func (b *Bricks) MotorB(speed int8) error {
	return b.set(false, true, byte(speed))
}

// Light sets the brightness of the lights on both connectors of every hub.
func (b *Bricks) Light(intensity byte) error {
	return b.set(true, true, intensity)
}

// LightA sets the brightness of the lights on connector A of every hub.
func (b *Bricks) LightA(intensity byte) error {
	return b.set(true, false, intensity)
}

// LightB sets the brightness of the lights on connector B of every hub.
func (b *Bricks) LightB(intensity byte) error {
	return b.set(false, true, intensity)
}

// set writes a connector value to every hub on the bus, carrying the
// remembered value for the untouched connector.
func (b *Bricks) set(portA, portB bool, value byte) error {
	packets, err := b.tr.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to enumerate hubs for write: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for handle := range packets {
		values := b.actual[handle]
		if portA {
			values[0] = value
		}
		if portB {
			values[1] = value
		}

		buf := []byte{0x00, commandByte, values[0], values[1], 0x00, 0x00, 0x00, 0x00, 0x00}
		if err := b.tr.Write(handle, buf); err != nil {
			return err
		}
		b.actual[handle] = values
	}
	return nil
}

// Distances returns the current reading of every distance sensor on the
// bus, over all hubs and connectors.
func (b *Bricks) Distances() ([]hub.DistanceValue, error) {
	hubs, err := b.Read()
	if err != nil {
		return nil, err
	}

	var distances []hub.DistanceValue
	for _, h := range hubs {
		for _, brick := range h.Bricks {
			if brick.Type() == hub.Distance {
				distances = append(distances, brick.Distance())
			}
		}
	}
	return distances, nil
}

// Tilts returns the current reading of every tilt sensor on the bus, over
// all hubs and connectors.
func (b *Bricks) Tilts() ([]hub.TiltValue, error) {
	hubs, err := b.Read()
	if err != nil {
		return nil, err
	}

	var tilts []hub.TiltValue
	for _, h := range hubs {
		for _, brick := range h.Bricks {
			if brick.Type() == hub.Tilt {
				tilts = append(tilts, brick.Tilt())
			}
		}
	}
	return tilts, nil
}
