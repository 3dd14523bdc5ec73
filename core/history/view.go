package history

import "sync/atomic"

// View guards a visible result set against out-of-order query responses.
// Each issued query takes a ticket; a response applies only when its
// ticket is still the latest, so a stale response arriving after a newer
// query's response is discarded rather than flashing old data.
type View struct {
	issued  atomic.Uint64
	applied atomic.Uint64
}

// Ticket identifies one issued query.
type Ticket uint64

// Issue marks a new query as the latest in flight.
func (v *View) Issue() Ticket {
	return Ticket(v.issued.Add(1))
}

// Apply installs a response if its ticket is still the latest issue and
// nothing newer has been applied. It reports whether the result should be
// shown.
func (v *View) Apply(t Ticket) bool {
	if uint64(t) != v.issued.Load() {
		return false
	}
	for {
		prev := v.applied.Load()
		if uint64(t) <= prev {
			return false
		}
		if v.applied.CompareAndSwap(prev, uint64(t)) {
			return true
		}
	}
}
