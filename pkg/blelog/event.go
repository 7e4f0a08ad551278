package blelog

import (
	"time"
)

// Event represents a protocol capture event from any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ScanID uniquely identifies the discovery pass (UUID).
	ScanID string `cbor:"2,keyasint"`

	// Direction indicates message flow relative to the host.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// PeerAddr is the peer hardware address, when a connection is involved.
	PeerAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"7,keyasint,omitempty"`  // Link layer (raw frames)
	Command     *CommandEvent     `cbor:"8,keyasint,omitempty"`  // Decoded command/event
	StateChange *StateChangeEvent `cbor:"9,keyasint,omitempty"`  // Engine state
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a frame or event from the dongle.
	DirectionIn Direction = 0
	// DirectionOut indicates a command sent to the dongle.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerLink is the serial framing layer (raw bytes).
	LayerLink Layer = 0
	// LayerCommand is the decoded command/event layer.
	LayerCommand Layer = 1
	// LayerEngine is the discovery engine layer.
	LayerEngine Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerLink:
		return "LINK"
	case LayerCommand:
		return "COMMAND"
	case LayerEngine:
		return "ENGINE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (command or event).
	CategoryMessage Category = 0
	// CategoryState indicates an engine state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw BGAPI frame at the link layer.
type FrameEvent struct {
	// Size is the full frame size in bytes, header included.
	Size int `cbor:"1,keyasint"`

	// Class is the BGAPI class ID from the frame header.
	Class uint8 `cbor:"2,keyasint"`

	// MessageID is the BGAPI message ID from the frame header.
	MessageID uint8 `cbor:"3,keyasint"`

	// Data is the frame payload (possibly truncated).
	Data []byte `cbor:"4,keyasint,omitempty"`

	// Truncated indicates the payload was cut for the capture.
	Truncated bool `cbor:"5,keyasint,omitempty"`
}

// CommandEvent captures a decoded command or dongle event.
type CommandEvent struct {
	// Name is the command or event name, e.g. "gap_connect_direct".
	Name string `cbor:"1,keyasint"`

	// Connection is the transport connection handle, when one applies.
	Connection *uint8 `cbor:"2,keyasint,omitempty"`

	// Handle is the attribute handle, for attribute reads.
	Handle *uint16 `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures a discovery engine state transition.
type StateChangeEvent struct {
	// OldState is the state name before the transition.
	OldState string `cbor:"1,keyasint"`

	// NewState is the state name after the transition.
	NewState string `cbor:"2,keyasint"`

	// Reason optionally explains the transition.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Message is the error description.
	Message string `cbor:"1,keyasint"`

	// Context describes what was happening when the error occurred.
	Context string `cbor:"2,keyasint,omitempty"`

	// Code is the protocol result code, when one is available.
	Code *int `cbor:"3,keyasint,omitempty"`
}
