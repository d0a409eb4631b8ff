// Package stack implements the stack-trace table: call stacks are interned
// into a fixed-capacity table and referenced from events by identifier.
// The engine only ever stores the identifier; frame contents are resolved
// entirely by the consumer side.
package stack

import (
	"runtime"
	"sync/atomic"
)

const (
	// Entries is the table capacity; identifiers are in [0, Entries).
	Entries = 256
	// MaxDepth caps the number of frames recorded per stack.
	MaxDepth = 50
)

// IDFailed is the sentinel stored in an event when capture failed or was
// not requested.
const IDFailed int64 = -1

// Table interns stacks in fast-compare mode: buckets are selected and
// compared by hash alone, with no duplicate elimination beyond hash
// equality. A bucket already holding a different hash fails the insert
// instead of evicting, so identifiers stay stable once handed out.
//
// All operations are lock-free single-word atomics and complete in
// bounded time.
type Table struct {
	buckets [Entries]atomic.Uint64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// GetID interns the stack and returns its identifier, or IDFailed when
// the bucket is taken by a different stack hash. Frames beyond MaxDepth
// are ignored.
func (t *Table) GetID(frames []uint64) int64 {
	if len(frames) == 0 {
		return IDFailed
	}
	if len(frames) > MaxDepth {
		frames = frames[:MaxDepth]
	}

	h := hashFrames(frames)
	id := h % Entries
	b := &t.buckets[id]

	if b.CompareAndSwap(0, h) || b.Load() == h {
		return int64(id)
	}
	return IDFailed
}

// hashFrames is FNV-1a over the frame addresses. Zero is reserved as the
// empty-bucket marker, so the hash is forced odd.
func hashFrames(frames []uint64) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for _, f := range frames {
		for i := 0; i < 8; i++ {
			h ^= (f >> (8 * i)) & 0xff
			h *= prime
		}
	}
	return h | 1
}

// Callers captures the current goroutine's call stack into buf, skipping
// skip frames above the caller, and returns the filled prefix. It is the
// default frame source for in-process attachment points; instrumentation
// layers with their own unwinder bypass it.
func Callers(skip int, buf *[MaxDepth]uint64) []uint64 {
	var pcs [MaxDepth]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	for i := 0; i < n; i++ {
		buf[i] = uint64(pcs[i])
	}
	return buf[:n]
}
