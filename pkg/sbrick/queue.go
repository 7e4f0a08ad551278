package sbrick

import (
	"github.com/wedo-robotics/wedo-go/pkg/ble"
)

// addressQueue is an insertion-ordered, deduplicating FIFO of peer
// addresses awaiting interrogation. Peers broadcast repeatedly during
// discovery, so the same address is offered many times; it is queued once,
// in first-seen order.
//
// The queue has no lock of its own: the engine serializes all access under
// its mutex.
type addressQueue struct {
	addrs []ble.Address
}

// offer appends the address unless it is already queued.
func (q *addressQueue) offer(a ble.Address) {
	for _, have := range q.addrs {
		if have == a {
			return
		}
	}
	q.addrs = append(q.addrs, a)
}

// pollNext pops the oldest queued address. The second return is false when
// the queue is empty.
func (q *addressQueue) pollNext() (ble.Address, bool) {
	if len(q.addrs) == 0 {
		return ble.Address{}, false
	}
	a := q.addrs[0]
	q.addrs = q.addrs[1:]
	return a, true
}

// isEmpty reports whether any addresses are waiting.
func (q *addressQueue) isEmpty() bool {
	return len(q.addrs) == 0
}

// size returns the number of queued addresses.
func (q *addressQueue) size() int {
	return len(q.addrs)
}
