// Package bgapi implements the BGAPI serial protocol spoken by the BLE112
// radio dongle.
//
// BGAPI is a binary command/response protocol: the host writes command
// frames, the dongle answers with response frames and delivers unsolicited
// event frames at any time. A Conn owns the serial link, provides typed
// senders for the command vocabulary this library needs, and runs a read
// loop that decodes inbound frames and hands them to a Handlers sink one
// at a time. Delivery is strictly serialized; a handler is never invoked
// while another handler is running.
//
// The physical link is any io.ReadWriter; pkg/bgapi/serial opens the
// dongle's tty.
package bgapi
