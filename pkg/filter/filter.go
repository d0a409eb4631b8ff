// Package filter decides, per invocation, whether the traced object
// matches the operator's configuration. Two independent predicates are
// ANDed: mark equality and the L3/L4 5-tuple match. Every check is strict
// equality; there is no masking or CIDR support. A failed bounded read
// while a predicate is active counts as a mismatch, never as an error.
package filter

import (
	"encoding/binary"

	"github.com/zhangbo1882/pwru/pkg/config"
	"github.com/zhangbo1882/pwru/pkg/kmem"
	"github.com/zhangbo1882/pwru/pkg/skb"
)

// ipv4HeaderLen is the length of the fixed part of an IPv4 header, the
// only part the engine ever inspects.
const ipv4HeaderLen = 20

// Mark passes when no mark filter is configured, otherwise requires exact
// equality with the object's mark field.
func Mark(v *skb.View, skbAddr uint64, cfg *config.Config) bool {
	if cfg.Mark == 0 {
		return true
	}
	mark, err := v.Mark(skbAddr)
	if err != nil {
		return false
	}
	return mark == cfg.Mark
}

// L3L4 filters by the packet 5-tuple. It passes unconditionally when the
// whole tuple filter is empty, and rejects anything that is not IPv4 once
// any tuple field is set: IPv6 is unsupported by design, not a defect.
func L3L4(v *skb.View, skbAddr uint64, cfg *config.Config) bool {
	if cfg.TupleEmpty() {
		return true
	}

	l3, l4, err := v.Headers(skbAddr)
	if err != nil {
		return false
	}

	first, err := kmem.U8(v.Reader(), l3)
	if err != nil {
		return false
	}
	if first>>4 != 4 {
		return false
	}

	var ip [ipv4HeaderLen]byte
	if err := v.Reader().ReadAt(l3, ip[:]); err != nil {
		return false
	}

	if !cfg.SAddr.IsZero() && addr4(ip[12:16]) != cfg.SAddr.V4() {
		return false
	}
	if !cfg.DAddr.IsZero() && addr4(ip[16:20]) != cfg.DAddr.V4() {
		return false
	}

	proto := ip[9]
	if cfg.L4Proto != 0 && proto != cfg.L4Proto {
		return false
	}

	if cfg.SPort != 0 || cfg.DPort != 0 {
		// TCP and UDP keep source and destination ports at the same
		// offsets; every other transport rejects while a port filter is
		// active.
		switch proto {
		case config.ProtoTCP, config.ProtoUDP:
		default:
			return false
		}

		var ports [4]byte
		if err := v.Reader().ReadAt(l4, ports[:]); err != nil {
			return false
		}
		sport := binary.BigEndian.Uint16(ports[0:2])
		dport := binary.BigEndian.Uint16(ports[2:4])

		if cfg.SPort != 0 && sport != cfg.SPort {
			return false
		}
		if cfg.DPort != 0 && dport != cfg.DPort {
			return false
		}
	}

	return true
}

// Match is the combined predicate. It short-circuits: a mark mismatch
// skips the costlier tuple parse.
func Match(v *skb.View, skbAddr uint64, cfg *config.Config) bool {
	return Mark(v, skbAddr, cfg) && L3L4(v, skbAddr, cfg)
}

func addr4(b []byte) [4]byte {
	var a [4]byte
	copy(a[:], b)
	return a
}
