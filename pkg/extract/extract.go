// Package extract populates the event's metadata and tuple blocks from a
// traced object. Extraction never fails: every unavailable field is left
// at its zero value and the rest of the block is still filled in.
package extract

import (
	"encoding/binary"

	"github.com/zhangbo1882/pwru/pkg/config"
	"github.com/zhangbo1882/pwru/pkg/event"
	"github.com/zhangbo1882/pwru/pkg/kmem"
	"github.com/zhangbo1882/pwru/pkg/skb"
)

// Meta fills the cheap metadata snapshot. The device record may be absent;
// a failed device pointer read leaves ifindex and mtu zero without
// aborting the rest.
func Meta(v *skb.View, skbAddr uint64, m *event.Meta) {
	if mark, err := v.Mark(skbAddr); err == nil {
		m.Mark = mark
	}
	if length, err := v.Len(skbAddr); err == nil {
		m.Len = length
	}
	if proto, err := v.Protocol(skbAddr); err == nil {
		m.Protocol = proto
	}

	dev, err := v.Dev(skbAddr)
	if err != nil || dev == 0 {
		return
	}
	if ifindex, err := v.DevIfindex(dev); err == nil {
		m.Ifindex = ifindex
	}
	if mtu, err := v.DevMTU(dev); err == nil {
		m.MTU = mtu
	}
}

// Tuple fills the flow identity block. The protocol byte is always
// recorded when readable; addresses only when the version nibble is 4,
// ports only for TCP and UDP. There is no filtering side effect here.
func Tuple(v *skb.View, skbAddr uint64, t *event.Tuple) {
	l3, l4, err := v.Headers(skbAddr)
	if err != nil {
		return
	}
	r := v.Reader()

	// The protocol byte is read on its own so a partially readable
	// header still reports it.
	if proto, err := kmem.U8(r, l3+9); err == nil {
		t.Proto = proto
	}

	if first, err := kmem.U8(r, l3); err == nil && first>>4 == 4 {
		var ip [20]byte
		if err := r.ReadAt(l3, ip[:]); err == nil {
			t.SAddr = binary.BigEndian.Uint32(ip[12:16])
			t.DAddr = binary.BigEndian.Uint32(ip[16:20])
		}
	}

	switch t.Proto {
	case config.ProtoTCP, config.ProtoUDP:
		var ports [4]byte
		if err := r.ReadAt(l4, ports[:]); err != nil {
			return
		}
		t.SPort = binary.BigEndian.Uint16(ports[0:2])
		t.DPort = binary.BigEndian.Uint16(ports[2:4])
	}
}
