package bgapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wedo-robotics/wedo-go/pkg/ble"
	"github.com/wedo-robotics/wedo-go/pkg/blelog"
)

// MaxCaptureDataSize is the maximum frame payload size to include in capture
// events. Larger payloads are truncated to keep capture files small.
const MaxCaptureDataSize = 256

// ErrConnClosed indicates the link is no longer usable.
var ErrConnClosed = errors.New("bgapi connection closed")

// Config configures a Conn.
type Config struct {
	// Capture receives a protocol trace of every frame in and out.
	// Nil disables capture.
	Capture blelog.Logger

	// ScanID tags capture events with the discovery pass they belong to.
	ScanID string

	// Log is the operational logger. Nil means slog.Default().
	Log *slog.Logger
}

// Conn owns one serial link to a BLE112 dongle. Commands may be sent from
// any goroutine; inbound frames are decoded by Run and dispatched to the
// registered Handlers one at a time.
type Conn struct {
	rw      io.ReadWriter
	capture blelog.Logger
	scanID  string
	log     *slog.Logger

	writeMu  sync.Mutex
	handlers Handlers

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn creates a Conn on the given link. The caller keeps ownership of
// closing the link; if rw implements io.Closer, cancelling the Run context
// closes it to unblock the read loop.
func NewConn(rw io.ReadWriter, cfg Config) *Conn {
	logger := cfg.Log
	if logger == nil {
		logger = slog.Default()
	}
	capture := cfg.Capture
	if capture == nil {
		capture = blelog.NoopLogger{}
	}
	return &Conn{
		rw:      rw,
		capture: capture,
		scanID:  cfg.ScanID,
		log:     logger,
		closed:  make(chan struct{}),
	}
}

// SetHandlers registers the sink for inbound frames. Must be called before
// Run; the engine is the sole sink for the duration of one discovery pass.
func (c *Conn) SetHandlers(h Handlers) {
	c.handlers = h
}

// Run reads frames until the link errors out or ctx is cancelled. Handlers
// are invoked from this goroutine only, so delivery is serialized and never
// reentrant.
func (c *Conn) Run(ctx context.Context) error {
	if closer, ok := c.rw.(io.Closer); ok {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				closer.Close()
			case <-done:
			}
		}()
	}

	for {
		f, err := ReadFrame(c.rw)
		if err != nil {
			c.closeOnce.Do(func() { close(c.closed) })
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("link read failed: %w", err)
		}

		c.captureFrame(f, blelog.DirectionIn)

		known, err := c.handlers.decode(f)
		if err != nil {
			c.log.Warn("dropping malformed frame",
				"class", f.Class, "id", f.ID, "err", err)
			continue
		}
		if !known {
			c.log.Debug("ignoring unhandled frame",
				"class", f.Class, "id", f.ID, "event", f.IsEvent())
		}
	}
}

// send writes one command frame.
func (c *Conn) send(name string, class, id byte, payload []byte) error {
	return c.sendConn(name, class, id, payload, nil, nil)
}

// sendConn writes one command frame, tagging the capture event with the
// connection slot and attribute handle it concerns.
func (c *Conn) sendConn(name string, class, id byte, payload []byte, connection *uint8, handle *uint16) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	f := Frame{Type: MsgTypeCommand, Class: class, ID: id, Payload: payload}

	c.writeMu.Lock()
	err := WriteFrame(c.rw, f)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	c.captureFrame(f, blelog.DirectionOut)
	c.captureCommand(name, connection, handle)
	return nil
}

func (c *Conn) captureFrame(f Frame, dir blelog.Direction) {
	data := f.Payload
	truncated := false
	if len(data) > MaxCaptureDataSize {
		data = data[:MaxCaptureDataSize]
		truncated = true
	}

	c.capture.Log(blelog.Event{
		Timestamp: time.Now(),
		ScanID:    c.scanID,
		Direction: dir,
		Layer:     blelog.LayerLink,
		Category:  blelog.CategoryMessage,
		Frame: &blelog.FrameEvent{
			Size:      HeaderSize + len(f.Payload),
			Class:     f.Class,
			MessageID: f.ID,
			Data:      data,
			Truncated: truncated,
		},
	})
}

func (c *Conn) captureCommand(name string, connection *uint8, handle *uint16) {
	c.capture.Log(blelog.Event{
		Timestamp: time.Now(),
		ScanID:    c.scanID,
		Direction: blelog.DirectionOut,
		Layer:     blelog.LayerCommand,
		Category:  blelog.CategoryMessage,
		Command: &blelog.CommandEvent{
			Name:       name,
			Connection: connection,
			Handle:     handle,
		},
	})
}

// SystemGetInfo asks the dongle to identify itself.
func (c *Conn) SystemGetInfo() error {
	return c.send("system_get_info", ClassSystem, cmdSystemGetInfo, nil)
}

// SystemGetConnections queries the dongle's connection capacity.
func (c *Conn) SystemGetConnections() error {
	return c.send("system_get_connections", ClassSystem, cmdSystemGetConnections, nil)
}

// SystemReset reboots the dongle. Mode 0 boots to the normal firmware.
func (c *Conn) SystemReset(mode uint8) error {
	p := (&payloadWriter{}).u8(mode)
	return c.send("system_reset", ClassSystem, cmdSystemReset, p.buf)
}

// GAPSetScanParameters configures the discovery radio schedule. Interval and
// window are in 625 us units; window must not exceed interval.
func (c *Conn) GAPSetScanParameters(interval, window uint16, active bool) error {
	a := uint8(0)
	if active {
		a = 1
	}
	p := (&payloadWriter{}).u16(interval).u16(window).u8(a)
	return c.send("gap_set_scan_parameters", ClassGAP, cmdGAPSetScanParameters, p.buf)
}

// GAPDiscover begins a discovery procedure.
func (c *Conn) GAPDiscover(mode uint8) error {
	p := (&payloadWriter{}).u8(mode)
	return c.send("gap_discover", ClassGAP, cmdGAPDiscover, p.buf)
}

// GAPEndProcedure ends the running discovery procedure. The response frame
// is delivered as a DiscoveryEnded.
func (c *Conn) GAPEndProcedure() error {
	return c.send("gap_end_procedure", ClassGAP, cmdGAPEndProcedure, nil)
}

// GAPConnectDirect initiates a connection to the given peer. Interval,
// timeout and latency follow the BGAPI units.
func (c *Conn) GAPConnectDirect(addr ble.Address, intervalMin, intervalMax, timeout, latency uint16) error {
	p := (&payloadWriter{}).addr(addr.B)
	p.u8(uint8(addr.Type)).u16(intervalMin).u16(intervalMax).u16(timeout).u16(latency)
	return c.send("gap_connect_direct", ClassGAP, cmdGAPConnectDirect, p.buf)
}

// ATTClientReadByHandle reads one attribute from a connected peer. The value
// arrives as an AttributeValue, or an AttributeReadCompleted alone when the
// peer rejects the handle.
func (c *Conn) ATTClientReadByHandle(connection uint8, handle uint16) error {
	p := (&payloadWriter{}).u8(connection).u16(handle)
	return c.sendConn("attclient_read_by_handle", ClassATTClient, cmdATTClientReadByHandle, p.buf, &connection, &handle)
}

// Disconnect closes the given connection slot. Completion is signalled by a
// ConnectionDisconnected event.
func (c *Conn) Disconnect(connection uint8) error {
	p := (&payloadWriter{}).u8(connection)
	return c.sendConn("connection_disconnect", ClassConnection, cmdConnectionDisconnect, p.buf, &connection, nil)
}
