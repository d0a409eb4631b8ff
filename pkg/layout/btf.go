package layout

import (
	"fmt"

	"github.com/cilium/ebpf/btf"
)

// BTF is the relocating strategy: field offsets are resolved from the
// platform's type descriptors at startup, so structure layout changes
// across kernel versions are tolerated without rebuilding.
type BTF struct {
	spec *btf.Spec
}

// NewBTF wraps an already loaded type descriptor spec.
func NewBTF(spec *btf.Spec) *BTF {
	return &BTF{spec: spec}
}

// NewKernelBTF loads the running kernel's type descriptors.
func NewKernelBTF() (*BTF, error) {
	spec, err := btf.LoadKernelSpec()
	if err != nil {
		return nil, fmt.Errorf("layout: kernel btf: %w", err)
	}
	return &BTF{spec: spec}, nil
}

// Name implements Resolver.
func (b *BTF) Name() string { return "btf-relocating" }

// Offsets implements Resolver.
func (b *BTF) Offsets() (Offsets, error) {
	var skb, dev *btf.Struct
	if err := b.spec.TypeByName("sk_buff", &skb); err != nil {
		return Offsets{}, fmt.Errorf("layout: resolve sk_buff: %w", err)
	}
	if err := b.spec.TypeByName("net_device", &dev); err != nil {
		return Offsets{}, fmt.Errorf("layout: resolve net_device: %w", err)
	}

	var off Offsets
	for _, f := range []struct {
		st   *btf.Struct
		name string
		dst  *uint64
	}{
		{skb, "mark", &off.Mark},
		{skb, "len", &off.Len},
		{skb, "protocol", &off.Protocol},
		{skb, "dev", &off.Dev},
		{skb, "head", &off.Head},
		{skb, "network_header", &off.NetworkHeader},
		{skb, "transport_header", &off.TransportHeader},
		{dev, "ifindex", &off.DevIfindex},
		{dev, "mtu", &off.DevMTU},
	} {
		v, ok := memberOffset(f.st, f.name)
		if !ok {
			return Offsets{}, fmt.Errorf("layout: %s has no member %q", f.st.Name, f.name)
		}
		*f.dst = v
	}
	return off, nil
}

// memberOffset finds the byte offset of name inside st, descending into
// anonymous structs and unions the way the sk_buff headers are nested.
func memberOffset(st *btf.Struct, name string) (uint64, bool) {
	bits, ok := memberBits(st.Members, name)
	if !ok {
		return 0, false
	}
	return uint64(bits / 8), true
}

func memberBits(members []btf.Member, name string) (btf.Bits, bool) {
	for _, m := range members {
		if m.Name == name {
			return m.Offset, true
		}
		if m.Name != "" {
			continue
		}
		switch t := btf.UnderlyingType(m.Type).(type) {
		case *btf.Struct:
			if bits, ok := memberBits(t.Members, name); ok {
				return m.Offset + bits, true
			}
		case *btf.Union:
			if bits, ok := memberBits(t.Members, name); ok {
				return m.Offset + bits, true
			}
		}
	}
	return 0, false
}
