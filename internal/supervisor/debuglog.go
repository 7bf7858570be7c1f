package supervisor

import "time"

// debugRingCap bounds entries per request; the oldest entries fall off
// first. The ring is independent of the supervision record itself.
const debugRingCap = 100

type DebugEntry struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	At      time.Time              `json:"at"`
}

// debugRing is a fixed-capacity FIFO of debug entries.
type debugRing struct {
	entries []DebugEntry
}

func (r *debugRing) append(e DebugEntry) {
	if len(r.entries) >= debugRingCap {
		// FIFO eviction of the oldest entry.
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:debugRingCap-1]
	}
	r.entries = append(r.entries, e)
}

func (r *debugRing) snapshot() []DebugEntry {
	out := make([]DebugEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
