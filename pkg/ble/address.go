// Package ble provides Bluetooth Low Energy peer addressing.
package ble

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress indicates a malformed hardware address string.
var ErrInvalidAddress = errors.New("invalid BLE address")

// AddrType distinguishes public from random device addresses.
type AddrType uint8

const (
	// AddrTypePublic is a fixed, manufacturer-assigned address.
	AddrTypePublic AddrType = 0

	// AddrTypeRandom is a randomly generated (possibly rotating) address.
	AddrTypeRandom AddrType = 1
)

// String returns the address type name.
func (t AddrType) String() string {
	switch t {
	case AddrTypePublic:
		return "public"
	case AddrTypeRandom:
		return "random"
	default:
		return "unknown"
	}
}

// Address identifies a discoverable radio peer. The hardware address is
// stored in wire order (least significant byte first, as BGAPI delivers it).
// Address is a comparable value type; two addresses are equal when both the
// bytes and the type tag match.
type Address struct {
	B    [6]byte
	Type AddrType
}

// NewAddress builds an Address from wire-order bytes and a type tag.
func NewAddress(b [6]byte, typ AddrType) Address {
	return Address{B: b, Type: typ}
}

// String renders the conventional colon-separated form, most significant
// byte first.
func (a Address) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		a.B[5], a.B[4], a.B[3], a.B[2], a.B[1], a.B[0])
}

// ParseAddress parses a colon-separated hardware address such as
// "00:07:80:2e:1f:a3" into an Address with the given type tag.
func ParseAddress(s string, typ AddrType) (Address, error) {
	parts := strings.Split(strings.ToLower(s), ":")
	if len(parts) != 6 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	var a Address
	a.Type = typ
	for i, p := range parts {
		var b byte
		if _, err := fmt.Sscanf(p, "%02x", &b); err != nil || len(p) != 2 {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		// reverse into wire order
		a.B[5-i] = b
	}
	return a, nil
}
