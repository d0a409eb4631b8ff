// Package skb exposes typed, fault-tolerant accessors over a traced
// sk_buff. A View pairs a bounded memory reader with the offsets resolved
// for the running platform; every getter returns the field value or an
// error the caller maps to "unavailable". All callers, filter and
// extractors alike, read each field through the same accessor.
package skb

import (
	"github.com/zhangbo1882/pwru/pkg/kmem"
	"github.com/zhangbo1882/pwru/pkg/layout"
)

// View reads fields off traced objects. It is immutable after construction
// and safe for concurrent use.
type View struct {
	mem kmem.Reader
	off layout.Offsets
}

// NewView builds a View over mem using the resolved offsets.
func NewView(mem kmem.Reader, off layout.Offsets) *View {
	return &View{mem: mem, off: off}
}

// Mark returns the object's mark field.
func (v *View) Mark(skb uint64) (uint32, error) {
	return kmem.U32(v.mem, skb+v.off.Mark)
}

// Len returns the object's total length field.
func (v *View) Len(skb uint64) (uint32, error) {
	return kmem.U32(v.mem, skb+v.off.Len)
}

// Protocol returns the object's link-layer protocol field with its raw
// byte order preserved.
func (v *View) Protocol(skb uint64) (uint16, error) {
	return kmem.U16(v.mem, skb+v.off.Protocol)
}

// Head returns the pointer to the start of the object's buffer.
func (v *View) Head(skb uint64) (uint64, error) {
	return kmem.Ptr(v.mem, skb+v.off.Head)
}

// NetworkHeader returns the network-layer header offset relative to Head.
func (v *View) NetworkHeader(skb uint64) (uint16, error) {
	return kmem.U16(v.mem, skb+v.off.NetworkHeader)
}

// TransportHeader returns the transport-layer header offset relative to
// Head.
func (v *View) TransportHeader(skb uint64) (uint16, error) {
	return kmem.U16(v.mem, skb+v.off.TransportHeader)
}

// Dev returns the pointer to the object's associated device record, which
// may be nil.
func (v *View) Dev(skb uint64) (uint64, error) {
	return kmem.Ptr(v.mem, skb+v.off.Dev)
}

// DevIfindex returns the interface index of a device record.
func (v *View) DevIfindex(dev uint64) (uint32, error) {
	return kmem.U32(v.mem, dev+v.off.DevIfindex)
}

// DevMTU returns the MTU of a device record.
func (v *View) DevMTU(dev uint64) (uint32, error) {
	return kmem.U32(v.mem, dev+v.off.DevMTU)
}

// Headers locates the network and transport headers in one shot: the
// absolute network-layer address, the absolute transport-layer address,
// and an error if any of the three underlying reads failed.
func (v *View) Headers(skb uint64) (l3, l4 uint64, err error) {
	head, err := v.Head(skb)
	if err != nil {
		return 0, 0, err
	}
	l3Off, err := v.NetworkHeader(skb)
	if err != nil {
		return 0, 0, err
	}
	l4Off, err := v.TransportHeader(skb)
	if err != nil {
		return 0, 0, err
	}
	return head + uint64(l3Off), head + uint64(l4Off), nil
}

// Reader exposes the underlying bounded reader for raw header copies.
func (v *View) Reader() kmem.Reader { return v.mem }
