// Package skbtest builds in-memory traced-object images for tests. A
// Packet description becomes a sparse address space holding a sk_buff laid
// out per the fixed offset table, an optional device record, and optional
// IPv4/TCP/UDP headers, so filter and extraction tests can state intent
// instead of poking bytes.
package skbtest

import (
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/zhangbo1882/pwru/pkg/kmem"
	"github.com/zhangbo1882/pwru/pkg/layout"
	"github.com/zhangbo1882/pwru/pkg/skb"
)

// Fixture addresses, far apart so stray reads fault.
const (
	SkbAddr  = 0xffff_8880_0000_1000
	headAddr = 0xffff_8880_0000_4000
	devAddr  = 0xffff_8880_0000_8000

	l3Offset = 64 // network header offset inside the buffer
	l4Offset = 84 // transport header offset (l3 + 20-byte IPv4 header)
)

// Device describes the optional associated device record.
type Device struct {
	Ifindex uint32
	MTU     uint32
}

// IPv4 describes the packet headers to synthesize.
type IPv4 struct {
	Src   string // dotted quad
	Dst   string
	Proto uint8  // IP protocol byte
	Sport uint16 // written into the transport header for TCP/UDP
	Dport uint16
	// Version overrides the header's version nibble when non-zero, for
	// exercising the non-IPv4 rejection paths.
	Version uint8
}

// Packet describes one traced object image.
type Packet struct {
	Mark     uint32
	Len      uint32
	Protocol uint16
	Dev      *Device // nil leaves a null device pointer
	IPv4     *IPv4   // nil maps no packet buffer at all
}

// Build materializes the packet into a sparse address space and returns it
// with the traced object's address.
func Build(t *testing.T, p Packet) (*kmem.Sparse, uint64) {
	t.Helper()

	off, err := layout.Fixed{}.Offsets()
	if err != nil {
		t.Fatalf("skbtest: fixed offsets: %v", err)
	}

	mem := kmem.NewSparse()

	obj := make([]byte, 256)
	binary.LittleEndian.PutUint32(obj[off.Mark:], p.Mark)
	binary.LittleEndian.PutUint32(obj[off.Len:], p.Len)
	binary.LittleEndian.PutUint16(obj[off.Protocol:], p.Protocol)
	binary.LittleEndian.PutUint16(obj[off.NetworkHeader:], l3Offset)
	binary.LittleEndian.PutUint16(obj[off.TransportHeader:], l4Offset)

	if p.Dev != nil {
		binary.LittleEndian.PutUint64(obj[off.Dev:], devAddr)
		dev := make([]byte, 512)
		binary.LittleEndian.PutUint32(dev[off.DevIfindex:], p.Dev.Ifindex)
		binary.LittleEndian.PutUint32(dev[off.DevMTU:], p.Dev.MTU)
		mem.Map(devAddr, dev)
	}

	if p.IPv4 != nil {
		binary.LittleEndian.PutUint64(obj[off.Head:], headAddr)
		mem.Map(headAddr, buffer(t, p.IPv4))
	}

	mem.Map(SkbAddr, obj)
	return mem, SkbAddr
}

// View returns an accessor over mem using the same offsets Build wrote.
func View(t *testing.T, mem kmem.Reader) *skb.View {
	t.Helper()
	off, err := layout.Fixed{}.Offsets()
	if err != nil {
		t.Fatalf("skbtest: fixed offsets: %v", err)
	}
	return skb.NewView(mem, off)
}

func buffer(t *testing.T, h *IPv4) []byte {
	t.Helper()

	buf := make([]byte, l4Offset+20)

	version := h.Version
	if version == 0 {
		version = 4
	}
	ip := buf[l3Offset:]
	ip[0] = version<<4 | 5
	ip[9] = h.Proto
	copy(ip[12:16], addr4(t, h.Src))
	copy(ip[16:20], addr4(t, h.Dst))

	// TCP and UDP put source and destination ports in the same place.
	l4 := buf[l4Offset:]
	binary.BigEndian.PutUint16(l4[0:2], h.Sport)
	binary.BigEndian.PutUint16(l4[2:4], h.Dport)

	return buf
}

func addr4(t *testing.T, s string) []byte {
	t.Helper()
	if s == "" {
		return make([]byte, 4)
	}
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		t.Fatalf("skbtest: bad IPv4 address %q: %v", s, err)
	}
	b := a.As4()
	return b[:]
}
