package event

import "sync/atomic"

// QuitHandler latches a quit request from a Quit event or the Escape key.
type QuitHandler struct {
	quit atomic.Bool
}

func (h *QuitHandler) Handle(ev Event) bool {
	if ev.Kind == Quit || (ev.Kind == KeyPress && ev.Key == KeyEscape) {
		h.quit.Store(true)
		return true
	}
	return false
}

// Requested returns true once a quit has been requested.
func (h *QuitHandler) Requested() bool {
	return h.quit.Load()
}

// Request a quit programmatically.
func (h *QuitHandler) Request() {
	h.quit.Store(true)
}
