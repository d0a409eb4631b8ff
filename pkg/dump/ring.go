// Package dump implements the optional, best-effort full-object dump: a
// fixed pool of rotating text slots shared by all processors. Slot
// selection costs one atomic increment; slot contents are deliberately
// unprotected beyond that, so two dumps that alias to the same slot after
// the counter wraps race and the last writer wins. That loss is accepted
// rather than paying for synchronization on the hot path.
package dump

import "sync/atomic"

const (
	// Slots is the pool size; the slot counter wraps at this boundary.
	Slots = 256
	// SlotSize bounds the textual rendering of one object.
	SlotSize = 2048
)

// Formatter renders a bounded, type-tagged textual representation of the
// traced object into dst, returning the number of bytes written. It is
// the injected capability that replaces a build-time gate: a Ring without
// a Formatter simply never produces dumps.
type Formatter interface {
	Format(dst []byte, objAddr uint64) (int, error)
}

// Ring is the slot pool.
type Ring struct {
	next  atomic.Uint64
	slots [Slots][SlotSize]byte
}

// NewRing returns an empty pool.
func NewRing() *Ring {
	return &Ring{}
}

// Capture picks the next slot, renders the object into it, and returns
// the slot id for correlation. ok is false when formatting failed; the
// slot is consumed either way, matching the original's counter behavior.
func (r *Ring) Capture(f Formatter, objAddr uint64) (id uint64, ok bool) {
	id = (r.next.Add(1) - 1) % Slots

	n, err := f.Format(r.slots[id][:], objAddr)
	if err != nil {
		return 0, false
	}
	if n >= 0 && n < SlotSize {
		r.slots[id][n] = 0
	}
	return id, true
}

// Snapshot copies the current text of a slot, trimmed at its terminator.
// The copy may interleave with a concurrent writer; consumers correlate
// by event timestamp and accept the residual race.
func (r *Ring) Snapshot(id uint64) ([]byte, bool) {
	if id >= Slots {
		return nil, false
	}
	slot := r.slots[id][:]
	n := 0
	for n < SlotSize && slot[n] != 0 {
		n++
	}
	out := make([]byte, n)
	copy(out, slot[:n])
	return out, true
}
