package hub

import (
	"strings"
	"testing"
)

func TestNewBrickValue_PortRange(t *testing.T) {
	for p := byte(FirstPort); p <= MaxPort; p++ {
		b := NewBrickValue(p, Motor, 0x7f)
		if b.Port() != p {
			t.Errorf("Port() = %c, want %c", b.Port(), p)
		}
	}

	defer func() {
		if recover() == nil {
			t.Error("port E should panic")
		}
	}()
	NewBrick('E', Motor)
}

func TestBrick_SensorGuards(t *testing.T) {
	d := NewBrickValue('A', Distance, 100)
	if got := d.Distance().Cm(); got != 31 {
		t.Errorf("Cm() = %d, want 31", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("Tilt() on a distance sensor should panic")
		}
	}()
	d.Tilt()
}

func TestDistanceValue_Cm(t *testing.T) {
	tests := []struct {
		raw  byte
		want int
	}{
		{0, 0},
		{69, 0},
		{70, 1},
		{189, 120},
	}

	for _, tt := range tests {
		d := NewBrickValue('B', Distance, tt.raw).Distance()
		if got := d.Cm(); got != tt.want {
			t.Errorf("Cm(raw=%d) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestTiltValue_Direction(t *testing.T) {
	tests := []struct {
		raw  byte
		want TiltDirection
	}{
		{0, TiltNone},
		{48, TiltNone},
		{49, TiltBackward},
		{98, TiltBackward},
		{99, TiltRight},
		{148, TiltRight},
		{149, TiltForward},
		{198, TiltForward},
		{199, TiltLeft},
		{255, TiltLeft},
	}

	for _, tt := range tests {
		v := NewBrickValue('C', Tilt, tt.raw).Tilt()
		if got := v.Direction(); got != tt.want {
			t.Errorf("Direction(raw=%d) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNewUnknownPorts(t *testing.T) {
	h := NewUnknownPorts("00:07:80:2e:1f:a3", "SBrick-1, V4.5")

	if h.Address != "00:07:80:2e:1f:a3" {
		t.Errorf("Address = %q", h.Address)
	}
	for i, b := range h.Bricks {
		if b.Type() != Unknown {
			t.Errorf("brick %d type = %v, want Unknown", i, b.Type())
		}
		if want := byte(FirstPort + i); b.Port() != want {
			t.Errorf("brick %d port = %c, want %c", i, b.Port(), want)
		}
	}
}

func TestHub_String(t *testing.T) {
	h := NewUnknownPorts("addr", "SBrick-1, V4.5")
	s := h.String()
	if !strings.Contains(s, "SBrick-1, V4.5") || !strings.Contains(s, "[port A: UNKNOWN") {
		t.Errorf("String() = %q", s)
	}
}

func TestBrick_String_WithSensor(t *testing.T) {
	b := NewBrickValue('A', Tilt, 120)
	if !strings.Contains(b.String(), "RIGHT") {
		t.Errorf("String() = %q, want RIGHT direction", b.String())
	}
}
