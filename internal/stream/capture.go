package stream

import "sync"

// Capture is the in-memory half of the stream tee: every event forwarded
// to the caller is also appended here, and after the terminal event the
// detached persistence task reads the whole sequence back.
//
// The mutex matters because the persistence task runs on a background
// context and may read while a disconnecting handler is still appending.
type Capture struct {
	mu     sync.Mutex
	events []Event
}

// NewCapture returns an empty capture buffer.
func NewCapture() *Capture {
	return &Capture{}
}

// Add appends one event in arrival order.
func (c *Capture) Add(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a snapshot copy of the captured sequence.
func (c *Capture) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Len returns the number of captured events.
func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
