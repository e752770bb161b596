package memory

import "sync"

// Window holds the last N messages, oldest first.
type Window struct {
	mu    sync.Mutex
	limit int
	next  int64
	msgs  []Message
}

// NewWindow returns a window bounded by limit; limits below 1 are raised to 1.
func NewWindow(limit int) *Window {
	if limit < 1 {
		limit = 1
	}
	return &Window{limit: limit, msgs: make([]Message, 0, limit)}
}

// Append adds m with the next ordinal id and drops the oldest message when
// the window is full. The stored copy is returned.
func (w *Window) Append(m Message) Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.next++
	m.ID = w.next
	if len(w.msgs) == w.limit {
		copy(w.msgs, w.msgs[1:])
		w.msgs = w.msgs[:len(w.msgs)-1]
	}
	w.msgs = append(w.msgs, m)
	return m
}

// Messages returns a copy of the window contents.
func (w *Window) Messages() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Message(nil), w.msgs...)
}

// Len returns the number of messages held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

// Limit returns the window bound.
func (w *Window) Limit() int { return w.limit }
