package sbrick

// scanState is the engine's position in one discovery pass. Transitions
// are driven by dongle events, except for the discovery window and the
// settle delay, which the calling goroutine times.
type scanState uint8

const (
	// stateIdle means no pass has started yet.
	stateIdle scanState = iota

	// stateInitializing means the dongle identify command was just sent.
	stateInitializing

	// stateAwaitingDongleInfo waits for the dongle's identity.
	stateAwaitingDongleInfo

	// stateAwaitingCapacity waits for the connection capacity report.
	stateAwaitingCapacity

	// stateScanning means discovery is running; scan responses feed the
	// address queue until the window closes.
	stateScanning

	// stateDrainingQueue means discovery ended and queued addresses are
	// being interrogated one at a time.
	stateDrainingQueue

	// stateConnecting waits for the connection status of the current peer.
	stateConnecting

	// stateReadingVendor waits for the vendor attribute value.
	stateReadingVendor

	// stateReadingVersion waits for the firmware version attribute value.
	stateReadingVersion

	// stateReadingName waits for the name attribute value.
	stateReadingName

	// stateFinished is terminal: the queue drained and the last connection
	// closed.
	stateFinished
)

// String returns the state name.
func (s scanState) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateInitializing:
		return "INITIALIZING"
	case stateAwaitingDongleInfo:
		return "AWAITING_DONGLE_INFO"
	case stateAwaitingCapacity:
		return "AWAITING_CAPACITY"
	case stateScanning:
		return "SCANNING"
	case stateDrainingQueue:
		return "DRAINING_QUEUE"
	case stateConnecting:
		return "CONNECTING"
	case stateReadingVendor:
		return "READING_VENDOR"
	case stateReadingVersion:
		return "READING_VERSION"
	case stateReadingName:
		return "READING_NAME"
	case stateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}
