package bgapi

import (
	"github.com/wedo-robotics/wedo-go/pkg/ble"
)

// Message IDs per class. Commands and their responses share an ID; events
// have their own ID space within a class.
const (
	// system class
	cmdSystemReset          = 0x00
	cmdSystemGetConnections = 0x06
	cmdSystemGetInfo        = 0x08

	// connection class
	cmdConnectionDisconnect = 0x00
	evtConnectionStatus     = 0x00
	evtConnectionDisconn    = 0x04

	// attclient class
	cmdATTClientReadByHandle = 0x04
	evtATTClientProcComplete = 0x01
	evtATTClientAttrValue    = 0x05

	// gap class
	cmdGAPDiscover          = 0x02
	cmdGAPConnectDirect     = 0x03
	cmdGAPEndProcedure      = 0x04
	cmdGAPSetScanParameters = 0x07
	evtGAPScanResponse      = 0x00

	// hardware class
	cmdHardwareADCRead = 0x02
)

// GAPDiscoverGeneric is the discover mode that accepts all advertising peers.
const GAPDiscoverGeneric = 1

// ConnectionFlagConnected is set in ConnectionStatus.Flags once the link to
// the peer is up.
const ConnectionFlagConnected = 0x01

// DongleInfo is the dongle's identity, the response to SystemGetInfo.
type DongleInfo struct {
	Major, Minor, Patch, Build uint16
	LLVersion                  uint16
	ProtocolVersion            uint8
	Hardware                   uint8
}

// ConnectionCapacity reports how many simultaneous links the dongle
// supports, the response to SystemGetConnections.
type ConnectionCapacity struct {
	MaxConnections uint8
}

// ScanResponse is one advertisement heard during discovery. Peers broadcast
// repeatedly, so the same sender shows up many times.
type ScanResponse struct {
	RSSI       int8
	PacketType uint8
	Sender     ble.Address
	Bond       uint8
	Data       []byte
}

// DiscoveryEnded is the response to GAPEndProcedure.
type DiscoveryEnded struct {
	Result uint16
}

// ConnectionStatus reports a change on a connection slot. Flags carries
// ConnectionFlagConnected when the peer link is up; a status without that
// flag means the connect attempt ended disconnected.
type ConnectionStatus struct {
	Connection uint8
	Flags      uint8
	Address    ble.Address
	Interval   uint16
	Timeout    uint16
	Latency    uint16
	Bonding    uint8
}

// ConnectionDisconnected reports a closed connection, whether peer-initiated
// or in answer to a disconnect command.
type ConnectionDisconnected struct {
	Connection uint8
	Reason     uint16
}

// AttributeValue carries the bytes read from one attribute handle.
type AttributeValue struct {
	Connection uint8
	Handle     uint16
	Type       uint8
	Value      []byte
}

// AttributeReadCompleted reports the end of an attribute read procedure.
// When the peer errors out on a handle it does not support, this arrives
// without a preceding AttributeValue.
type AttributeReadCompleted struct {
	Connection uint8
	Result     uint16
	Handle     uint16
}

// HardwareFault reports a dongle-level hardware error. The dongle's state
// is suspect after one of these.
type HardwareFault struct {
	Result uint16
}

// Handlers is the sink for inbound frames. Nil fields are skipped. The read
// loop invokes at most one handler at a time, in delivery order.
type Handlers struct {
	OnDongleInfo             func(DongleInfo)
	OnConnectionCapacity     func(ConnectionCapacity)
	OnScanResponse           func(ScanResponse)
	OnDiscoveryEnded         func(DiscoveryEnded)
	OnConnectionStatus       func(ConnectionStatus)
	OnConnectionDisconnected func(ConnectionDisconnected)
	OnAttributeValue         func(AttributeValue)
	OnAttributeReadCompleted func(AttributeReadCompleted)
	OnHardwareFault          func(HardwareFault)
}

// decode parses a frame into its typed form and invokes the matching
// handler. Unknown frames are reported back to the caller as false.
func (h *Handlers) decode(f Frame) (bool, error) {
	p := &payloadReader{buf: f.Payload}

	switch {
	case !f.IsEvent() && f.Class == ClassSystem && f.ID == cmdSystemGetInfo:
		info := DongleInfo{
			Major: p.u16(), Minor: p.u16(), Patch: p.u16(), Build: p.u16(),
			LLVersion: p.u16(), ProtocolVersion: p.u8(), Hardware: p.u8(),
		}
		if p.err == nil && h.OnDongleInfo != nil {
			h.OnDongleInfo(info)
		}

	case !f.IsEvent() && f.Class == ClassSystem && f.ID == cmdSystemGetConnections:
		cc := ConnectionCapacity{MaxConnections: p.u8()}
		if p.err == nil && h.OnConnectionCapacity != nil {
			h.OnConnectionCapacity(cc)
		}

	case f.IsEvent() && f.Class == ClassGAP && f.ID == evtGAPScanResponse:
		sr := ScanResponse{RSSI: p.i8(), PacketType: p.u8()}
		raw := p.addr()
		sr.Sender = ble.NewAddress(raw, ble.AddrType(p.u8()))
		sr.Bond = p.u8()
		sr.Data = p.bytes()
		if p.err == nil && h.OnScanResponse != nil {
			h.OnScanResponse(sr)
		}

	case !f.IsEvent() && f.Class == ClassGAP && f.ID == cmdGAPEndProcedure:
		de := DiscoveryEnded{Result: p.u16()}
		if p.err == nil && h.OnDiscoveryEnded != nil {
			h.OnDiscoveryEnded(de)
		}

	case f.IsEvent() && f.Class == ClassConnection && f.ID == evtConnectionStatus:
		cs := ConnectionStatus{Connection: p.u8(), Flags: p.u8()}
		raw := p.addr()
		cs.Address = ble.NewAddress(raw, ble.AddrType(p.u8()))
		cs.Interval = p.u16()
		cs.Timeout = p.u16()
		cs.Latency = p.u16()
		cs.Bonding = p.u8()
		if p.err == nil && h.OnConnectionStatus != nil {
			h.OnConnectionStatus(cs)
		}

	case f.IsEvent() && f.Class == ClassConnection && f.ID == evtConnectionDisconn:
		cd := ConnectionDisconnected{Connection: p.u8(), Reason: p.u16()}
		if p.err == nil && h.OnConnectionDisconnected != nil {
			h.OnConnectionDisconnected(cd)
		}

	case f.IsEvent() && f.Class == ClassATTClient && f.ID == evtATTClientAttrValue:
		av := AttributeValue{Connection: p.u8(), Handle: p.u16(), Type: p.u8()}
		av.Value = p.bytes()
		if p.err == nil && h.OnAttributeValue != nil {
			h.OnAttributeValue(av)
		}

	case f.IsEvent() && f.Class == ClassATTClient && f.ID == evtATTClientProcComplete:
		rc := AttributeReadCompleted{Connection: p.u8(), Result: p.u16(), Handle: p.u16()}
		if p.err == nil && h.OnAttributeReadCompleted != nil {
			h.OnAttributeReadCompleted(rc)
		}

	case f.Class == ClassHardware && f.ID == cmdHardwareADCRead:
		hf := HardwareFault{Result: p.u16()}
		if p.err == nil && h.OnHardwareFault != nil {
			h.OnHardwareFault(hf)
		}

	default:
		return false, nil
	}

	return true, p.err
}
