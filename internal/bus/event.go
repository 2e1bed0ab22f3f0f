package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds used by the client core:
//
//	thread.updated       — the open conversation's message list changed
//	thread.send_failed   — an optimistic send was rolled back
//	chatlist.updated     — the chat list projection changed
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
