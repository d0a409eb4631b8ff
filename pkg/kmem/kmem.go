// Package kmem provides the bounded field reader: a fault-tolerant
// primitive for copying fields out of traced kernel objects. Every read
// names an explicit source address and length, copies into a caller-owned
// buffer, and reports failure instead of faulting, so callers can treat an
// unreadable field as "unavailable, use zero" and keep going.
package kmem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrFault is the sentinel wrapped by every failed read. Callers use
// errors.Is(err, ErrFault) when the distinction from other errors matters;
// most callers only care that the value is unavailable.
var ErrFault = errors.New("kmem: read fault")

// Reader copies bytes from a traced address space.
//
// ReadAt fills buf entirely from addr or returns an error; there is no
// partial success. Implementations must never read past len(buf) and must
// never panic on an invalid address.
type Reader interface {
	ReadAt(addr uint64, buf []byte) error
}

// ReadError describes one failed bounded read.
type ReadError struct {
	Addr uint64
	Size int
	Err  error
}

// Error formats the failed read with its address and length.
func (e *ReadError) Error() string {
	return fmt.Sprintf("kmem: read %d bytes at %#x: %v", e.Size, e.Addr, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ReadError) Unwrap() error { return e.Err }

// Is reports true for ErrFault so callers can match without unwrapping
// the concrete type.
func (e *ReadError) Is(target error) bool { return target == ErrFault }

func fault(addr uint64, size int, cause error) error {
	if cause == nil {
		cause = ErrFault
	}
	return &ReadError{Addr: addr, Size: size, Err: cause}
}

// U8 reads a single byte at addr.
func U8(r Reader, addr uint64) (uint8, error) {
	var b [1]byte
	if err := r.ReadAt(addr, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a 16-bit field at addr in the traced platform's byte order
// (little-endian). Fields that hold network-byte-order values come back
// with their raw bytes preserved; interpretation is up to the caller.
func U16(r Reader, addr uint64) (uint16, error) {
	var b [2]byte
	if err := r.ReadAt(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// U32 reads a 32-bit field at addr.
func U32(r Reader, addr uint64) (uint32, error) {
	var b [4]byte
	if err := r.ReadAt(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// U64 reads a 64-bit field at addr.
func U64(r Reader, addr uint64) (uint64, error) {
	var b [8]byte
	if err := r.ReadAt(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Ptr reads a pointer-sized field at addr. A successfully read nil pointer
// is returned as (0, nil); callers that dereference it will get a fault
// from the follow-up read, not from Ptr.
func Ptr(r Reader, addr uint64) (uint64, error) {
	return U64(r, addr)
}
