package bgapi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame header layout: 4 bytes, then payload.
//
//	octet 0: bit 7 = message type (0 command/response, 1 event),
//	         bits 2..0 = payload length high bits
//	octet 1: payload length low byte
//	octet 2: class ID
//	octet 3: message ID
//
// All multi-byte payload fields are little-endian.
const (
	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 4

	// MaxPayloadSize is the largest payload the 11-bit length field allows.
	MaxPayloadSize = 2047

	// MsgTypeCommand marks command and response frames.
	MsgTypeCommand = 0x00

	// MsgTypeEvent marks unsolicited event frames.
	MsgTypeEvent = 0x80
)

// BGAPI class IDs.
const (
	ClassSystem     = 0x00
	ClassConnection = 0x03
	ClassATTClient  = 0x04
	ClassGAP        = 0x06
	ClassHardware   = 0x07
)

// Framing errors.
var (
	// ErrPayloadTooLarge indicates the payload exceeds the 11-bit length field.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrFrameTruncated indicates the link delivered a partial frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// Frame is one BGAPI packet, either direction.
type Frame struct {
	// Type is MsgTypeCommand or MsgTypeEvent.
	Type byte

	// Class is the BGAPI class ID.
	Class byte

	// ID is the message ID within the class.
	ID byte

	// Payload is the frame body, little-endian fields.
	Payload []byte
}

// IsEvent returns true for unsolicited event frames.
func (f Frame) IsEvent() bool {
	return f.Type&MsgTypeEvent != 0
}

// WriteFrame writes a frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(f.Payload), MaxPayloadSize)
	}

	buf := make([]byte, HeaderSize+len(f.Payload))
	buf[0] = (f.Type & MsgTypeEvent) | byte(len(f.Payload)>>8)
	buf[1] = byte(len(f.Payload))
	buf[2] = f.Class
	buf[3] = f.ID
	copy(buf[HeaderSize:], f.Payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r. It blocks until a full frame arrives
// or the link errors out.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrFrameTruncated
		}
		return Frame{}, err
	}

	length := int(header[0]&0x07)<<8 | int(header[1])
	f := Frame{
		Type:  header[0] & MsgTypeEvent,
		Class: header[2],
		ID:    header[3],
	}
	if length > 0 {
		f.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, ErrFrameTruncated
			}
			return Frame{}, err
		}
	}
	return f, nil
}

// payloadReader decodes little-endian fields from a frame payload.
type payloadReader struct {
	buf []byte
	off int
	err error
}

func (p *payloadReader) u8() uint8 {
	if p.err != nil || p.off+1 > len(p.buf) {
		p.err = ErrFrameTruncated
		return 0
	}
	v := p.buf[p.off]
	p.off++
	return v
}

func (p *payloadReader) i8() int8 {
	return int8(p.u8())
}

func (p *payloadReader) u16() uint16 {
	if p.err != nil || p.off+2 > len(p.buf) {
		p.err = ErrFrameTruncated
		return 0
	}
	v := binary.LittleEndian.Uint16(p.buf[p.off:])
	p.off += 2
	return v
}

func (p *payloadReader) addr() [6]byte {
	var a [6]byte
	if p.err != nil || p.off+6 > len(p.buf) {
		p.err = ErrFrameTruncated
		return a
	}
	copy(a[:], p.buf[p.off:p.off+6])
	p.off += 6
	return a
}

func (p *payloadReader) bytes() []byte {
	n := int(p.u8())
	if p.err != nil || p.off+n > len(p.buf) {
		p.err = ErrFrameTruncated
		return nil
	}
	v := make([]byte, n)
	copy(v, p.buf[p.off:p.off+n])
	p.off += n
	return v
}

// payloadWriter encodes little-endian fields into a frame payload.
type payloadWriter struct {
	buf []byte
}

func (p *payloadWriter) u8(v uint8) *payloadWriter {
	p.buf = append(p.buf, v)
	return p
}

func (p *payloadWriter) u16(v uint16) *payloadWriter {
	p.buf = binary.LittleEndian.AppendUint16(p.buf, v)
	return p
}

func (p *payloadWriter) addr(a [6]byte) *payloadWriter {
	p.buf = append(p.buf, a[:]...)
	return p
}
