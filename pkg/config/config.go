// Package config defines the engine's filter configuration: a single
// fixed-layout record the external loader publishes exactly once before
// any attachment fires. A zero value in any filter field means "do not
// constrain on this field".
package config

import "bytes"

// IP protocol bytes the engine understands for port filtering.
const (
	ProtoTCP = 6
	ProtoUDP = 17
)

// Addr is the address union: room for a v6 address is reserved, but only
// the leading v4 word is ever interpreted. Bytes are kept in network
// order and compared raw against header bytes. Ports, by contrast, live
// in host order on the Config struct; the packed record form carries
// them in network order (see codec.go).
type Addr [16]byte

// V4 returns the v4 word of the union.
func (a Addr) V4() [4]byte {
	var v [4]byte
	copy(v[:], a[:4])
	return v
}

// SetV4 stores a v4 address, given in network order.
func (a *Addr) SetV4(v [4]byte) {
	*a = Addr{}
	copy(a[:4], v[:])
}

// IsZero reports whether the whole union is unset.
func (a Addr) IsZero() bool {
	return a == Addr{}
}

// Output selects which optional annotations the engine computes per
// accepted invocation.
type Output struct {
	Timestamp bool `yaml:"timestamp"`
	Meta      bool `yaml:"meta"`
	Tuple     bool `yaml:"tuple"`
	Skb       bool `yaml:"skb"`
	Stack     bool `yaml:"stack"`
}

// Config is the filter configuration record. It is immutable for the
// lifetime of all attachments.
type Config struct {
	Mark uint32
	// IPv6 is reserved and unsupported; the filter rejects non-IPv4
	// traffic whenever a tuple filter is active.
	IPv6    bool
	SAddr   Addr
	DAddr   Addr
	L4Proto uint8
	SPort   uint16
	DPort   uint16
	Output  Output
}

// TupleEmpty reports whether no 5-tuple filtering was requested at all:
// both address unions, the protocol, and both ports are zero. This is the
// explicit fast path that skips header parsing entirely.
func (c *Config) TupleEmpty() bool {
	return c.L4Proto == 0 &&
		bytes.Equal(c.SAddr[:], zeroAddr[:]) &&
		bytes.Equal(c.DAddr[:], zeroAddr[:]) &&
		c.SPort == 0 && c.DPort == 0
}

var zeroAddr Addr
