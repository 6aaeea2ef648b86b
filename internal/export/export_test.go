package export

import "time"

// SetNow replaces the handler's time source.
func (h *Handler) SetNow(now func() time.Time) {
	h.now = now
}
