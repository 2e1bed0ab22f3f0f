package chatlist

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers per key: each trigger arms (or
// re-arms) that key's timer, and the callback fires once per key after
// the window closes. Nothing is dropped, only merged; the last trigger
// for a key decides when its callback runs.
type Debouncer struct {
	delay time.Duration
	fn    func(key string)

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewDebouncer creates a debouncer firing fn after delay of quiet per key.
func NewDebouncer(delay time.Duration, fn func(key string)) *Debouncer {
	return &Debouncer{
		delay:  delay,
		fn:     fn,
		timers: make(map[string]*time.Timer),
	}
}

// Trigger schedules fn(key), extending the window if one is already open
// for that key.
func (d *Debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		d.fn(key)
	})
}

// Stop cancels all pending timers. Callbacks that have not fired yet are
// discarded.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
