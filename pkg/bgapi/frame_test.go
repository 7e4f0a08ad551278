package bgapi

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrame_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{"empty command", Frame{Type: MsgTypeCommand, Class: ClassSystem, ID: cmdSystemGetInfo}},
		{"command with payload", Frame{Type: MsgTypeCommand, Class: ClassATTClient, ID: cmdATTClientReadByHandle, Payload: []byte{0x01, 0x10, 0x00}}},
		{"event", Frame{Type: MsgTypeEvent, Class: ClassGAP, ID: evtGAPScanResponse, Payload: bytes.Repeat([]byte{0xaa}, 20)}},
		{"long payload", Frame{Type: MsgTypeEvent, Class: ClassATTClient, ID: evtATTClientAttrValue, Payload: bytes.Repeat([]byte{0x5a}, 300)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.frame); err != nil {
				t.Fatalf("WriteFrame() error: %v", err)
			}

			got, err := ReadFrame(&buf)
			if err != nil {
				t.Fatalf("ReadFrame() error: %v", err)
			}
			if got.Type != tt.frame.Type || got.Class != tt.frame.Class || got.ID != tt.frame.ID {
				t.Errorf("header = %+v, want %+v", got, tt.frame)
			}
			if !bytes.Equal(got.Payload, tt.frame.Payload) {
				t.Errorf("payload mismatch: %d bytes, want %d", len(got.Payload), len(tt.frame.Payload))
			}
		})
	}
}

func TestWriteFrame_PayloadTooLarge(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Type: MsgTypeCommand, Payload: make([]byte, MaxPayloadSize+1)}
	if err := WriteFrame(&buf, f); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("WriteFrame() error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestReadFrame_Truncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"partial header", []byte{0x80, 0x02}},
		{"missing payload", []byte{0x80, 0x03, ClassConnection, evtConnectionDisconn, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrFrameTruncated) {
				t.Errorf("ReadFrame() error = %v, want ErrFrameTruncated", err)
			}
		})
	}
}

func TestFrame_IsEvent(t *testing.T) {
	if (Frame{Type: MsgTypeCommand}).IsEvent() {
		t.Error("command frame reported as event")
	}
	if !(Frame{Type: MsgTypeEvent}).IsEvent() {
		t.Error("event frame not reported as event")
	}
}

func TestPayloadReader_ShortBuffer(t *testing.T) {
	p := &payloadReader{buf: []byte{0x01}}
	_ = p.u16()
	if p.err == nil {
		t.Error("u16 on 1-byte buffer should set err")
	}
}

func TestPayloadReader_Bytes(t *testing.T) {
	p := &payloadReader{buf: []byte{0x03, 'a', 'b', 'c'}}
	got := p.bytes()
	if p.err != nil {
		t.Fatalf("bytes() err: %v", p.err)
	}
	if string(got) != "abc" {
		t.Errorf("bytes() = %q, want %q", got, "abc")
	}

	// declared length longer than buffer
	p = &payloadReader{buf: []byte{0x05, 'a'}}
	_ = p.bytes()
	if p.err == nil {
		t.Error("bytes() with short buffer should set err")
	}
}
