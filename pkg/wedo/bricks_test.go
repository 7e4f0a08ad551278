package wedo

import (
	"errors"
	"testing"

	"github.com/wedo-robotics/wedo-go/pkg/hub"
)

// fakeTransport scripts the USB bus for one test: fixed packets per handle,
// recorded writes.
type fakeTransport struct {
	packets map[Handle]Packet
	writes  map[Handle][][]byte
	readErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		packets: make(map[Handle]Packet),
		writes:  make(map[Handle][][]byte),
	}
}

func (f *fakeTransport) ReadAll() (map[Handle]Packet, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make(map[Handle]Packet, len(f.packets))
	for h, p := range f.packets {
		out[h] = p
	}
	return out, nil
}

func (f *fakeTransport) Write(handle Handle, buf []byte) error {
	f.writes[handle] = append(f.writes[handle], append([]byte(nil), buf...))
	return nil
}

var _ Transport = (*fakeTransport)(nil)

var hub1 = Handle{Path: "/dev/hidraw0", ProductName: "LEGO USB Hub v1.00"}

// packet builds a report with the given connector bytes in wire positions.
func packet(valueA, idA, valueB, idB byte) Packet {
	return Packet{0x00, 0x40, valueA, idA, valueB, idB, 0x00, 0x00}
}

func TestRead_DecodesConnectors(t *testing.T) {
	f := newFakeTransport()
	f.packets[hub1] = packet(0x80, 0xb0, 0x00, 0xe6) // distance on A, B empty

	b := NewBricks(f, nil)
	hubs, err := b.Read()
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(hubs) != 1 {
		t.Fatalf("read %d hubs, want 1", len(hubs))
	}

	h := hubs[0]
	if h.Address != hub1.Path || h.Label != hub1.ProductName {
		t.Errorf("hub identity = %q/%q, want %q/%q", h.Address, h.Label, hub1.Path, hub1.ProductName)
	}
	if got := h.Bricks[0].Type(); got != hub.Distance {
		t.Errorf("port A type = %v, want Distance", got)
	}
	if got := h.Bricks[0].Distance().Cm(); got != 0x80-69 {
		t.Errorf("port A distance = %dcm, want %dcm", got, 0x80-69)
	}
	if got := h.Bricks[1].Type(); got != hub.NotConnected {
		t.Errorf("port B type = %v, want NotConnected", got)
	}
	// WeDo hubs have two connectors; the model's remaining ports are empty
	for _, port := range h.Bricks[2:] {
		if port.Type() != hub.NotConnected {
			t.Errorf("port %c type = %v, want NotConnected", port.Port(), port.Type())
		}
	}
}

func TestBrickType_KnownIDBytes(t *testing.T) {
	tests := []struct {
		id   byte
		want hub.BrickType
	}{
		{0xe6, hub.NotConnected},
		{0xe7, hub.NotConnected},
		{0xee, hub.Motor},
		{0xef, hub.Motor},
		{0xf0, hub.Motor},
		{0xcb, hub.Light},
		{0xcd, hub.Light},
		{0xb0, hub.Distance},
		{0xb3, hub.Distance},
		{0x26, hub.Tilt},
		{0x27, hub.Tilt},
		{0x42, hub.Unknown},
		{0x00, hub.Unknown},
	}

	for _, tt := range tests {
		if got := brickType(tt.id); got != tt.want {
			t.Errorf("brickType(0x%02x) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestMotor_WritesCommandPacket(t *testing.T) {
	f := newFakeTransport()
	f.packets[hub1] = packet(0x00, 0xee, 0x00, 0xee)

	b := NewBricks(f, nil)
	if err := b.Motor(30); err != nil {
		t.Fatalf("Motor() error: %v", err)
	}

	writes := f.writes[hub1]
	if len(writes) != 1 {
		t.Fatalf("wrote %d packets, want 1", len(writes))
	}
	want := []byte{0x00, 0x40, 30, 30, 0x00, 0x00, 0x00, 0x00, 0x00}
	if string(writes[0]) != string(want) {
		t.Errorf("wrote % 02x, want % 02x", writes[0], want)
	}
}

func TestMotor_NegativeSpeedByte(t *testing.T) {
	f := newFakeTransport()
	f.packets[hub1] = packet(0x00, 0xee, 0x00, 0xe6)

	b := NewBricks(f, nil)
	if err := b.Motor(-127); err != nil {
		t.Fatalf("Motor() error: %v", err)
	}

	if got := f.writes[hub1][0][2]; got != byte(int8(-127)) {
		t.Errorf("value byte = 0x%02x, want 0x%02x", got, byte(int8(-127)))
	}
}

func TestMotorA_PreservesPortB(t *testing.T) {
	f := newFakeTransport()
	f.packets[hub1] = packet(0x00, 0xee, 0x00, 0xee)

	b := NewBricks(f, nil)
	if err := b.MotorB(80); err != nil {
		t.Fatalf("MotorB() error: %v", err)
	}
	if err := b.MotorA(25); err != nil {
		t.Fatalf("MotorA() error: %v", err)
	}

	// the second write drives A without clobbering the running B motor
	writes := f.writes[hub1]
	if len(writes) != 2 {
		t.Fatalf("wrote %d packets, want 2", len(writes))
	}
	if writes[1][2] != 25 || writes[1][3] != 80 {
		t.Errorf("second write values = 0x%02x/0x%02x, want 0x19/0x50",
			writes[1][2], writes[1][3])
	}
}

func TestReset_ZeroesBothPorts(t *testing.T) {
	f := newFakeTransport()
	f.packets[hub1] = packet(0x00, 0xee, 0x00, 0xcb)

	b := NewBricks(f, nil)
	if err := b.Motor(100); err != nil {
		t.Fatal(err)
	}
	if err := b.Reset(); err != nil {
		t.Fatal(err)
	}

	last := f.writes[hub1][len(f.writes[hub1])-1]
	if last[2] != 0x00 || last[3] != 0x00 {
		t.Errorf("reset wrote values 0x%02x/0x%02x, want zeroes", last[2], last[3])
	}
}

func TestDistances_CollectsAllSensors(t *testing.T) {
	hub2 := Handle{Path: "/dev/hidraw1", ProductName: "LEGO USB Hub v1.00"}

	f := newFakeTransport()
	f.packets[hub1] = packet(70, 0xb0, 0x00, 0x26) // distance on A, tilt on B
	f.packets[hub2] = packet(0x00, 0xe6, 90, 0xb1) // distance on B

	b := NewBricks(f, nil)
	distances, err := b.Distances()
	if err != nil {
		t.Fatalf("Distances() error: %v", err)
	}
	if len(distances) != 2 {
		t.Fatalf("got %d distances, want 2", len(distances))
	}

	tilts, err := b.Tilts()
	if err != nil {
		t.Fatalf("Tilts() error: %v", err)
	}
	if len(tilts) != 1 {
		t.Fatalf("got %d tilts, want 1", len(tilts))
	}
}

func TestSet_SurfacesEnumerationError(t *testing.T) {
	f := newFakeTransport()
	f.readErr = errors.New("bus gone")

	b := NewBricks(f, nil)
	if err := b.Motor(10); err == nil {
		t.Error("Motor() should surface the enumeration error")
	}
}
