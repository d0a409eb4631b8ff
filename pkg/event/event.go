// Package event defines the fixed-layout records the engine emits onto
// the monitoring channel, one per accepted invocation. Records are value
// types: built fresh on a per-invocation scratch area, copied out, and
// discarded.
package event

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Size is the byte length of a serialized Event.
const Size = 88

// Sub-record sizes within the packed layout.
const (
	metaSize  = 20
	tupleSize = 20
)

// Meta is the always-cheap metadata snapshot of the traced object.
type Meta struct {
	Mark    uint32
	Ifindex uint32
	Len     uint32
	MTU     uint32
	// Protocol carries the link-layer protocol field with its raw byte
	// order preserved, exactly as read off the object.
	Protocol uint16
}

// Tuple is the L3/L4 flow identity, populated for IPv4 only. Addresses
// and ports are in network byte order as captured from the headers.
type Tuple struct {
	SAddr uint32
	DAddr uint32
	SPort uint16
	DPort uint16
	Proto uint8
}

// Src returns the source address for display.
func (t Tuple) Src() netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], t.SAddr)
	return netip.AddrFrom4(b)
}

// Dst returns the destination address for display.
func (t Tuple) Dst() netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], t.DAddr)
	return netip.AddrFrom4(b)
}

// Event is the wire record. PrintSkbID is only meaningful when a full
// dump was requested and succeeded; PrintStackID is negative when stack
// capture failed or was not requested.
type Event struct {
	PID          uint32
	Type         uint32
	Addr         uint64
	SkbAddr      uint64
	TS           uint64
	PrintSkbID   uint64
	Meta         Meta
	Tuple        Tuple
	PrintStackID int64
}

// Encode serializes the event into its fixed layout.
func (e *Event) Encode() [Size]byte {
	var b [Size]byte
	binary.LittleEndian.PutUint32(b[0:], e.PID)
	binary.LittleEndian.PutUint32(b[4:], e.Type)
	binary.LittleEndian.PutUint64(b[8:], e.Addr)
	binary.LittleEndian.PutUint64(b[16:], e.SkbAddr)
	binary.LittleEndian.PutUint64(b[24:], e.TS)
	binary.LittleEndian.PutUint64(b[32:], e.PrintSkbID)

	binary.LittleEndian.PutUint32(b[40:], e.Meta.Mark)
	binary.LittleEndian.PutUint32(b[44:], e.Meta.Ifindex)
	binary.LittleEndian.PutUint32(b[48:], e.Meta.Len)
	binary.LittleEndian.PutUint32(b[52:], e.Meta.MTU)
	binary.LittleEndian.PutUint16(b[56:], e.Meta.Protocol)

	binary.BigEndian.PutUint32(b[60:], e.Tuple.SAddr)
	binary.BigEndian.PutUint32(b[64:], e.Tuple.DAddr)
	binary.BigEndian.PutUint16(b[68:], e.Tuple.SPort)
	binary.BigEndian.PutUint16(b[70:], e.Tuple.DPort)
	b[72] = e.Tuple.Proto

	binary.LittleEndian.PutUint64(b[80:], uint64(e.PrintStackID))
	return b
}

// Decode parses a raw monitoring-channel sample into an Event.
func Decode(raw []byte) (Event, error) {
	if len(raw) < Size {
		return Event{}, fmt.Errorf("event: short record: got=%d want>=%d", len(raw), Size)
	}
	var e Event
	e.PID = binary.LittleEndian.Uint32(raw[0:])
	e.Type = binary.LittleEndian.Uint32(raw[4:])
	e.Addr = binary.LittleEndian.Uint64(raw[8:])
	e.SkbAddr = binary.LittleEndian.Uint64(raw[16:])
	e.TS = binary.LittleEndian.Uint64(raw[24:])
	e.PrintSkbID = binary.LittleEndian.Uint64(raw[32:])

	e.Meta.Mark = binary.LittleEndian.Uint32(raw[40:])
	e.Meta.Ifindex = binary.LittleEndian.Uint32(raw[44:])
	e.Meta.Len = binary.LittleEndian.Uint32(raw[48:])
	e.Meta.MTU = binary.LittleEndian.Uint32(raw[52:])
	e.Meta.Protocol = binary.LittleEndian.Uint16(raw[56:])

	e.Tuple.SAddr = binary.BigEndian.Uint32(raw[60:])
	e.Tuple.DAddr = binary.BigEndian.Uint32(raw[64:])
	e.Tuple.SPort = binary.BigEndian.Uint16(raw[68:])
	e.Tuple.DPort = binary.BigEndian.Uint16(raw[70:])
	e.Tuple.Proto = raw[72]

	e.PrintStackID = int64(binary.LittleEndian.Uint64(raw[80:]))
	return e, nil
}
