package sbrick

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wedo-robotics/wedo-go/pkg/ble"
	"github.com/wedo-robotics/wedo-go/pkg/bgapi"
	"github.com/wedo-robotics/wedo-go/pkg/blelog"
	"github.com/wedo-robotics/wedo-go/pkg/hub"
)

// Discovery radio schedule, in 625 us units.
const (
	// ScanInterval is how often the scanner is started. Range 20 ms to
	// 10240 ms.
	ScanInterval = 10

	// ScanWindow is how long to scan at each interval.
	ScanWindow = 250

	// scanActive requests scan responses, not just advertisements.
	scanActive = true
)

// Attribute handles of the SBrick firmware. These are protocol constants of
// the peripheral and must match the deployed firmware's layout.
const (
	// HandleVendor addresses the manufacturer name string.
	HandleVendor = 0x10

	// HandleVersion addresses the firmware revision string.
	HandleVersion = 0x0a

	// HandleName addresses the device name.
	HandleName = 0x03
)

// VendorSBrick is the manufacturer string genuine SBricks report.
const VendorSBrick = "Vengit Ltd."

// Connection parameters for interrogation links, in BGAPI units.
const (
	ConnIntervalMin = 60
	ConnIntervalMax = 76
	ConnTimeout     = 100
	ConnLatency     = 0
)

// FaultExitCode is the process exit status after a dongle hardware fault,
// distinct from normal completion and from ordinary failures.
const FaultExitCode = 2

// Defaults for Config.
const (
	// DefaultDiscoveryWindow is how long scan responses are collected.
	DefaultDiscoveryWindow = 3 * time.Second

	// DefaultSettleDelay absorbs trailing disconnect events after the
	// queue drains, before Scan returns.
	DefaultSettleDelay = 1 * time.Second
)

// ErrScanDone indicates a Scanner was asked to run a second pass. A Scanner
// performs one discovery pass; create a new one per pass.
var ErrScanDone = errors.New("scanner already ran")

// Commander is the dongle command surface the engine drives. Implemented by
// *bgapi.Conn. The engine issues at most one command chain at a time and
// relies on the transport delivering events serialized.
type Commander interface {
	SystemGetInfo() error
	SystemGetConnections() error
	SystemReset(mode uint8) error
	GAPSetScanParameters(interval, window uint16, active bool) error
	GAPDiscover(mode uint8) error
	GAPEndProcedure() error
	GAPConnectDirect(addr ble.Address, intervalMin, intervalMax, timeout, latency uint16) error
	ATTClientReadByHandle(connection uint8, handle uint16) error
	Disconnect(connection uint8) error
}

// Compile-time interface satisfaction check.
var _ Commander = (*bgapi.Conn)(nil)

// Config configures a Scanner.
type Config struct {
	// DiscoveryWindow is how long to collect scan responses before ending
	// discovery. Default: DefaultDiscoveryWindow.
	DiscoveryWindow time.Duration

	// SettleDelay is the fixed wait after the queue drains, before Scan
	// returns. Default: DefaultSettleDelay.
	SettleDelay time.Duration

	// ReadTimeout bounds one peer's interrogation. Zero disables the
	// timeout, matching the dongle protocol's own behavior: a peer that
	// connects but never answers a read then stalls the pass.
	ReadTimeout time.Duration

	// Capture receives a protocol trace of engine state changes.
	// Nil disables capture.
	Capture blelog.Logger

	// Log is the operational logger. Nil means slog.Default().
	Log *slog.Logger

	// ScanID tags capture events. Empty means a fresh UUID.
	ScanID string

	// Fatal terminates the process after a dongle hardware fault.
	// Nil means os.Exit. Tests override it.
	Fatal func(code int)
}

// connContext is the state of the single in-flight connection. At most one
// exists at a time; the address queue is the only buffer for pending work,
// which keeps interrogation sequential even though the transport is
// asynchronous.
type connContext struct {
	addr    ble.Address
	handle  uint8
	version string

	// rejected marks a peer that failed validation. The remaining
	// attribute reads still run (unknown firmwares may react unpredictably
	// to a changed read pattern), but the peer is not added to the
	// inventory.
	rejected bool

	// disconnectSent guards the one disconnect command per connection.
	disconnectSent bool

	timer *time.Timer
}

// Scanner runs one discovery-and-interrogation pass. Create with New, run
// with Scan. All mutable state is touched only under mu, from the
// transport's event goroutine, the timeout timer, and the calling
// goroutine's bracketing phases.
type Scanner struct {
	cmd     Commander
	cfg     Config
	log     *slog.Logger
	capture blelog.Logger
	scanID  string

	mu       sync.Mutex
	state    scanState
	queue    addressQueue
	conn     *connContext
	found    []hub.Hub
	gen      int
	finished bool

	// done is closed when the engine reaches Finished.
	done chan struct{}
}

// New creates a Scanner on the given dongle link.
func New(cmd Commander, cfg Config) *Scanner {
	if cfg.DiscoveryWindow <= 0 {
		cfg.DiscoveryWindow = DefaultDiscoveryWindow
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	logger := cfg.Log
	if logger == nil {
		logger = slog.Default()
	}
	capture := cfg.Capture
	if capture == nil {
		capture = blelog.NoopLogger{}
	}
	scanID := cfg.ScanID
	if scanID == "" {
		scanID = uuid.NewString()
	}
	if cfg.Fatal == nil {
		cfg.Fatal = os.Exit
	}

	return &Scanner{
		cmd:     cmd,
		cfg:     cfg,
		log:     logger,
		capture: capture,
		scanID:  scanID,
		state:   stateIdle,
		done:    make(chan struct{}),
	}
}

// ScanID returns the identifier tagging this pass in capture files.
func (s *Scanner) ScanID() string {
	return s.scanID
}

// Handlers returns the event sink to register on the transport before
// calling Scan.
func (s *Scanner) Handlers() bgapi.Handlers {
	return bgapi.Handlers{
		OnDongleInfo:             s.onDongleInfo,
		OnConnectionCapacity:     s.onConnectionCapacity,
		OnScanResponse:           s.onScanResponse,
		OnDiscoveryEnded:         s.onDiscoveryEnded,
		OnConnectionStatus:       s.onConnectionStatus,
		OnConnectionDisconnected: s.onConnectionDisconnected,
		OnAttributeValue:         s.onAttributeValue,
		OnAttributeReadCompleted: s.onAttributeReadCompleted,
		OnHardwareFault:          s.onHardwareFault,
	}
}

// Scan runs the discovery pass and blocks until the address queue has
// drained, the last connection has closed and the settle delay elapsed.
// Peers that fail validation are excluded from the result, not surfaced as
// errors. On return the transport is idle and disconnected.
func (s *Scanner) Scan() ([]hub.Hub, error) {
	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		return nil, ErrScanDone
	}
	s.setStateLocked(stateInitializing, "scan started")
	s.mu.Unlock()

	if err := s.cmd.SystemGetInfo(); err != nil {
		return nil, fmt.Errorf("failed to identify dongle: %w", err)
	}

	s.mu.Lock()
	s.setStateLocked(stateAwaitingDongleInfo, "")
	s.mu.Unlock()

	// The fixed discovery window. Ending the procedure triggers the
	// connect-and-interrogate chain; see onDiscoveryEnded.
	time.Sleep(s.cfg.DiscoveryWindow)
	if err := s.cmd.GAPEndProcedure(); err != nil {
		return nil, fmt.Errorf("failed to end discovery: %w", err)
	}

	// Wait for the queue to drain and the last connection to close.
	<-s.done
	time.Sleep(s.cfg.SettleDelay)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.found, nil
}

func (s *Scanner) onDongleInfo(info bgapi.DongleInfo) {
	s.log.Info("BLE112 dongle found",
		"version", fmt.Sprintf("%d.%d.%d-%d", info.Major, info.Minor, info.Patch, info.Build),
		"ll_version", info.LLVersion,
		"protocol", info.ProtocolVersion,
		"hardware", info.Hardware)

	s.mu.Lock()
	s.setStateLocked(stateAwaitingCapacity, "dongle identified")
	s.mu.Unlock()

	if err := s.cmd.SystemGetConnections(); err != nil {
		s.failLink("query connection capacity", err)
	}
}

func (s *Scanner) onConnectionCapacity(cc bgapi.ConnectionCapacity) {
	s.log.Info("dongle connection capacity", "max_connections", cc.MaxConnections)

	s.mu.Lock()
	s.setStateLocked(stateScanning, "discovery started")
	s.mu.Unlock()

	if err := s.cmd.GAPSetScanParameters(ScanInterval, ScanWindow, scanActive); err != nil {
		s.failLink("set scan parameters", err)
		return
	}
	if err := s.cmd.GAPDiscover(bgapi.GAPDiscoverGeneric); err != nil {
		s.failLink("begin discovery", err)
	}
}

// onScanResponse queues the sender for interrogation. Peers broadcast
// repeatedly, so duplicates are the normal case. Responses that trail in
// after the discovery window are still accepted.
func (s *Scanner) onScanResponse(sr bgapi.ScanResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return
	}
	s.queue.offer(sr.Sender)
}

func (s *Scanner) onDiscoveryEnded(bgapi.DiscoveryEnded) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setStateLocked(stateDrainingQueue, "discovery ended")
	s.log.Debug("discovery ended", "queued_peers", s.queue.size())
	s.connectNextLocked()
}

func (s *Scanner) onConnectionStatus(cs bgapi.ConnectionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs.Flags&bgapi.ConnectionFlagConnected != 0 {
		if s.conn == nil {
			// a stray status for a connection we no longer track
			return
		}
		s.conn.handle = cs.Connection
		s.setStateLocked(stateReadingVendor, "connected")
		if err := s.cmd.ATTClientReadByHandle(cs.Connection, HandleVendor); err != nil {
			s.failLinkLocked("read vendor attribute", err)
		}
		return
	}

	// the connect attempt ended disconnected; move to the next peer
	s.clearConnLocked()
	s.connectNextLocked()
}

// onConnectionDisconnected is the universal recovery path: whether the peer
// dropped, rejected us, or we disconnected it, control returns to the queue
// drain. A peer lost mid-interrogation never stalls the pass.
func (s *Scanner) onConnectionDisconnected(cd bgapi.ConnectionDisconnected) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug("connection closed", "connection", cd.Connection, "reason", cd.Reason)
	s.clearConnLocked()
	s.connectNextLocked()
}

func (s *Scanner) onAttributeValue(av bgapi.AttributeValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Attribute values only mean something while a tracked connection is in
	// one of the reading states; anything else is residue from a connection
	// that already ended.
	if !s.interrogatingLocked(av.Connection) {
		return
	}

	switch av.Handle {
	case HandleVendor:
		if string(av.Value) != VendorSBrick {
			// not an SBrick
			s.rejectLocked("vendor mismatch")
		}
		s.setStateLocked(stateReadingVersion, "vendor read")
		if err := s.cmd.ATTClientReadByHandle(s.conn.handle, HandleVersion); err != nil {
			s.failLinkLocked("read version attribute", err)
		}

	case HandleVersion:
		s.conn.version = string(av.Value)
		fw, err := ParseFirmware(s.conn.version)
		switch {
		case err != nil:
			s.rejectLocked("unparseable firmware version")
		case !fw.NewerThan(MinSupportedFirmware):
			s.log.Info("found an SBrick with an older, unsupported firmware; "+
				"update it with the official SBrick app and scan again",
				"peer", s.conn.addr.String(), "firmware", s.conn.version)
			s.rejectLocked("unsupported firmware")
		}
		s.setStateLocked(stateReadingName, "version read")
		if err := s.cmd.ATTClientReadByHandle(s.conn.handle, HandleName); err != nil {
			s.failLinkLocked("read name attribute", err)
		}

	case HandleName:
		if !s.conn.rejected {
			found := hub.NewUnknownPorts(
				s.conn.addr.String(),
				fmt.Sprintf("%s, V%s", string(av.Value), s.conn.version),
			)
			s.found = append(s.found, found)
			s.log.Info("found supported SBrick",
				"peer", found.Address, "label", found.Label)
		}
		s.disconnectLocked()

	default:
		s.rejectLocked(fmt.Sprintf("unexpected attribute handle 0x%02x", av.Handle))
	}
}

// onAttributeReadCompleted fires when a peripheral errors out on a handle it
// does not support, without delivering a value. Treated like any rejection.
func (s *Scanner) onAttributeReadCompleted(rc bgapi.AttributeReadCompleted) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.interrogatingLocked(rc.Connection) {
		return
	}
	s.rejectLocked(fmt.Sprintf("attribute read failed, result 0x%04x", rc.Result))
}

// interrogatingLocked reports whether the given transport connection is the
// one currently being read.
func (s *Scanner) interrogatingLocked(connection uint8) bool {
	if s.conn == nil || s.conn.handle != connection {
		return false
	}
	switch s.state {
	case stateReadingVendor, stateReadingVersion, stateReadingName:
		return true
	default:
		return false
	}
}

// onHardwareFault handles the one unrecoverable condition: the dongle
// itself reported a hardware error, so its state is assumed corrupted. The
// dongle is reset and the process terminates.
func (s *Scanner) onHardwareFault(hf bgapi.HardwareFault) {
	s.captureError(fmt.Sprintf("dongle hardware fault 0x%04x", hf.Result), int(hf.Result))

	if err := s.cmd.SystemReset(0); err != nil {
		s.log.Error("failed to reset dongle after fault", "err", err)
	}
	time.Sleep(time.Second)

	s.log.Error("BLE112 dongle reported a hardware error",
		"result", fmt.Sprintf("0x%04x", hf.Result))
	s.cfg.Fatal(FaultExitCode)
}

// connectNextLocked pops the next queued address and connects to it, or
// finishes the pass when nothing is left and no connection is active.
func (s *Scanner) connectNextLocked() {
	if s.finished || s.conn != nil {
		return
	}

	addr, ok := s.queue.pollNext()
	if !ok {
		s.finishLocked()
		return
	}

	s.gen++
	s.conn = &connContext{addr: addr}
	s.setStateLocked(stateConnecting, "connecting to "+addr.String())

	if err := s.cmd.GAPConnectDirect(addr, ConnIntervalMin, ConnIntervalMax, ConnTimeout, ConnLatency); err != nil {
		s.failLinkLocked("connect to "+addr.String(), err)
		return
	}

	if s.cfg.ReadTimeout > 0 {
		gen := s.gen
		s.conn.timer = time.AfterFunc(s.cfg.ReadTimeout, func() {
			s.onInterrogationTimeout(gen)
		})
	}
}

// onInterrogationTimeout fires when a peer connected but never answered.
// It takes the same path as a rejection; the dongle's disconnect event then
// advances the queue.
func (s *Scanner) onInterrogationTimeout(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished || s.conn == nil || s.gen != gen {
		return
	}
	s.log.Warn("peer stopped answering, abandoning interrogation",
		"peer", s.conn.addr.String())
	s.rejectLocked("interrogation timeout")
}

// rejectLocked excludes the current peer from the inventory and issues the
// single disconnect it gets.
func (s *Scanner) rejectLocked(reason string) {
	if s.conn == nil || s.conn.rejected {
		return
	}
	s.conn.rejected = true
	s.log.Debug("rejecting peer", "peer", s.conn.addr.String(), "reason", reason)
	s.disconnectLocked()
}

// disconnectLocked sends at most one disconnect command per connection.
func (s *Scanner) disconnectLocked() {
	if s.conn == nil || s.conn.disconnectSent {
		return
	}
	s.conn.disconnectSent = true
	if err := s.cmd.Disconnect(s.conn.handle); err != nil {
		s.failLinkLocked("disconnect", err)
	}
}

func (s *Scanner) clearConnLocked() {
	if s.conn == nil {
		return
	}
	if s.conn.timer != nil {
		s.conn.timer.Stop()
	}
	s.conn = nil
	s.gen++
}

// finishLocked marks the pass complete and releases Scan.
func (s *Scanner) finishLocked() {
	if s.finished {
		return
	}
	s.finished = true
	s.setStateLocked(stateFinished, "queue drained")
	close(s.done)
}

// failLink aborts the pass on a link-level send failure; without a working
// link no further events can arrive, so waiting would hang forever.
func (s *Scanner) failLink(context string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLinkLocked(context, err)
}

func (s *Scanner) failLinkLocked(context string, err error) {
	s.log.Error("dongle link failed", "context", context, "err", err)
	s.captureError(context+": "+err.Error(), 0)
	s.clearConnLocked()
	s.finishLocked()
}

func (s *Scanner) setStateLocked(next scanState, reason string) {
	if s.state == next {
		return
	}
	old := s.state
	s.state = next

	peer := ""
	if s.conn != nil {
		peer = s.conn.addr.String()
	}
	s.capture.Log(blelog.Event{
		Timestamp: time.Now(),
		ScanID:    s.scanID,
		Direction: blelog.DirectionIn,
		Layer:     blelog.LayerEngine,
		Category:  blelog.CategoryState,
		PeerAddr:  peer,
		StateChange: &blelog.StateChangeEvent{
			OldState: old.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

func (s *Scanner) captureError(msg string, code int) {
	var codePtr *int
	if code != 0 {
		codePtr = &code
	}
	s.capture.Log(blelog.Event{
		Timestamp: time.Now(),
		ScanID:    s.scanID,
		Direction: blelog.DirectionIn,
		Layer:     blelog.LayerEngine,
		Category:  blelog.CategoryError,
		Error: &blelog.ErrorEventData{
			Message: msg,
			Code:    codePtr,
		},
	})
}
