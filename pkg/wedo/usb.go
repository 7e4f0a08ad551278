// Package wedo drives LEGO WeDo hubs over USB HID.
//
// The layer is geared heavily to the WeDo protocol and is not a general
// purpose USB API: hubs exchange fixed-size report packets, two connectors
// per hub, one value and one identity byte per connector.
package wedo

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sstallion/go-hid"
)

// USB identity of a WeDo hub.
const (
	// VendorIDLEGO is LEGO's USB vendor ID.
	VendorIDLEGO = 0x0694

	// ProductIDWeDoHub is the WeDo hub's USB product ID.
	ProductIDWeDoHub = 0x0003
)

// Packet sizes of the WeDo HID protocol.
const (
	// PacketSize is the size of one sensor report read from a hub.
	PacketSize = 8

	// WritePacketSize is the size of one command report, including the
	// leading report ID byte.
	WritePacketSize = 9
)

// readTimeout bounds one packet read; hubs report continuously, so a
// timeout means the hub went away or is wedged.
const readTimeout = 100 * time.Millisecond

// Handle identifies one WeDo hub on the bus.
type Handle struct {
	// Path is the platform-specific device path. Stable while the hub
	// stays plugged in.
	Path string

	// ProductName is the human-readable USB product string.
	ProductName string
}

// String renders the handle for listings and logs.
func (h Handle) String() string {
	return fmt.Sprintf("%s (%s)", h.ProductName, h.Path)
}

// Packet is one sensor report as a hub delivers it.
type Packet [PacketSize]byte

// ValueA returns the raw sensor byte of connector A.
func (p Packet) ValueA() byte { return p[2] }

// IDA returns the brick identity byte of connector A.
func (p Packet) IDA() byte { return p[3] }

// ValueB returns the raw sensor byte of connector B.
func (p Packet) ValueB() byte { return p[4] }

// IDB returns the brick identity byte of connector B.
func (p Packet) IDB() byte { return p[5] }

// USB enumerates and talks to WeDo hubs. Opened devices are cached until
// Close: rapidly opening and closing HID devices in a tight polling loop
// crashes the HID layer on some platforms.
type USB struct {
	log *slog.Logger

	mu   sync.Mutex
	open map[string]*hid.Device
}

// OpenUSB initializes the HID layer. Callers own the result and must Close
// it to release the cached devices.
func OpenUSB(log *slog.Logger) (*USB, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize HID layer: %w", err)
	}
	return &USB{
		log:  log,
		open: make(map[string]*hid.Device),
	}, nil
}

// ReadAll reads one packet from every WeDo hub on the bus. Hubs that cannot
// be read (unplugged mid-enumeration, permission problems) are logged and
// skipped, not surfaced as errors.
func (u *USB) ReadAll() (map[Handle]Packet, error) {
	packets := make(map[Handle]Packet)

	err := hid.Enumerate(VendorIDLEGO, ProductIDWeDoHub, func(info *hid.DeviceInfo) error {
		if info.ProductStr == "" {
			// Typically a device permissions issue under Linux; udev
			// rules may be needed.
			u.log.Warn("unable to read product name, permission issue?",
				"path", info.Path)
			return nil
		}
		handle := Handle{Path: info.Path, ProductName: info.ProductStr}

		dev, err := u.device(handle)
		if err != nil {
			u.log.Warn("unable to open device, claimed by another application?",
				"handle", handle.String(), "err", err)
			return nil
		}

		var buf [PacketSize]byte
		n, err := dev.ReadWithTimeout(buf[:], readTimeout)
		if err != nil {
			u.log.Warn("unexpected error reading packet",
				"handle", handle.String(), "err", err)
			return nil
		}
		if n != PacketSize {
			u.log.Warn("short packet, timeout?",
				"handle", handle.String(), "expected", PacketSize, "received", n)
			return nil
		}

		p := Packet(buf)
		u.log.Debug("USB read", "handle", handle.String(),
			"value_a", fmt.Sprintf("0x%02x", p.ValueA()),
			"id_a", fmt.Sprintf("0x%02x", p.IDA()),
			"value_b", fmt.Sprintf("0x%02x", p.ValueB()),
			"id_b", fmt.Sprintf("0x%02x", p.IDB()))
		packets[handle] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate WeDo hubs: %w", err)
	}

	return packets, nil
}

// Write sends one command report to the hub. The buffer must be a full
// report, report ID byte included.
func (u *USB) Write(handle Handle, buf []byte) error {
	if len(buf) != WritePacketSize {
		return fmt.Errorf("command packet must be %d bytes, got %d", WritePacketSize, len(buf))
	}

	dev, err := u.device(handle)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", handle, err)
	}

	u.log.Debug("USB write", "handle", handle.String(),
		"value_a", fmt.Sprintf("0x%02x", buf[2]),
		"value_b", fmt.Sprintf("0x%02x", buf[3]))

	n, err := dev.Write(buf)
	if err != nil {
		return fmt.Errorf("failed to write to %s: %w", handle, err)
	}
	if n != len(buf) {
		return fmt.Errorf("expected to write %d bytes to %s, but wrote %d", len(buf), handle, n)
	}
	return nil
}

// device returns the cached open device for the handle, opening it on first
// use.
func (u *USB) device(handle Handle) (*hid.Device, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if dev, ok := u.open[handle.Path]; ok {
		return dev, nil
	}
	dev, err := hid.OpenPath(handle.Path)
	if err != nil {
		return nil, err
	}
	u.open[handle.Path] = dev
	return dev, nil
}

// Close releases all cached devices and shuts the HID layer down.
func (u *USB) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	for path, dev := range u.open {
		if err := dev.Close(); err != nil {
			u.log.Warn("failed to close device", "path", path, "err", err)
		}
	}
	u.open = make(map[string]*hid.Device)

	if err := hid.Exit(); err != nil {
		return fmt.Errorf("failed to shut down HID layer: %w", err)
	}
	return nil
}
