// Package sbrick discovers and interrogates SBrick BLE hubs through a
// BLE112 dongle.
//
// Scanning, connecting and then interrogating SBricks is rather involved
// because BGAPI is fully asynchronous: a command may only be sent once the
// previous command's response has arrived. The Scanner makes that implicit
// chain explicit as a state machine driven by the dongle's event stream.
// One discovery pass identifies the dongle, scans for a fixed window,
// connects to each discovered peer in turn, reads its vendor, firmware
// version and name attributes, and collects the supported SBricks into an
// inventory.
//
// The dongle link is consumed through the Commander interface; the Scanner
// registers itself as the sole event sink for the duration of one pass.
// Concurrent scans on the same link are unsupported.
package sbrick
