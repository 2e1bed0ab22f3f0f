package status

// Status is the client-side delivery state of a message. It is never
// persisted; each client derives it from what it has observed.
type Status string

const (
	// Sent means local persistence confirmed the message, sender's view.
	Sent Status = "sent"
	// Delivered means a receiving client observed the message over the
	// realtime transport.
	Delivered Status = "delivered"
	// Read means the sender received a read receipt for the message.
	Read Status = "read"
)

// rank orders the lifecycle. Unknown statuses rank below Sent so a
// malformed event can never advance a message.
var rank = map[Status]int{
	Sent:      1,
	Delivered: 2,
	Read:      3,
}

// Valid reports whether s is one of the three lifecycle states.
func Valid(s Status) bool {
	return rank[s] != 0
}

// Apply merges an incoming status into the current one. The lifecycle is
// monotonic (sent -> delivered -> read): an event carrying an earlier or
// equal state is ignored, so duplicate and out-of-order receipts are
// no-ops. Returns the resulting status and whether it changed.
func Apply(current, incoming Status) (Status, bool) {
	if rank[incoming] > rank[current] {
		return incoming, true
	}
	return current, false
}
