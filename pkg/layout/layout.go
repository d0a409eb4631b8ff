// Package layout resolves the byte offsets of the traced object's fields.
//
// The same logical field can live at different offsets depending on the
// running kernel, so the offsets are produced by one of two strategies
// chosen once at startup: a relocating resolver that walks the platform's
// BTF type descriptors, or a fixed table baked in for kernels that predate
// usable type information. Per-invocation code never branches on the
// platform version; it only sees the resolved Offsets value.
package layout

import "fmt"

// Offsets holds the resolved byte offsets of every field the engine reads
// off a traced sk_buff and its net_device.
type Offsets struct {
	Mark            uint64
	Len             uint64
	Protocol        uint64
	Dev             uint64
	Head            uint64
	NetworkHeader   uint64
	TransportHeader uint64

	DevIfindex uint64
	DevMTU     uint64
}

// Resolver produces the field offsets for the running platform.
type Resolver interface {
	// Offsets resolves all fields or fails; a partially resolved layout is
	// never returned.
	Offsets() (Offsets, error)
	// Name identifies the strategy for logs.
	Name() string
}

// Fixed is the fallback strategy: offsets frozen at build time for the
// last kernel generation without reliable type descriptors (the 5.4 x86-64
// layout).
type Fixed struct{}

// Name implements Resolver.
func (Fixed) Name() string { return "fixed-offset" }

// Offsets implements Resolver.
func (Fixed) Offsets() (Offsets, error) {
	return Offsets{
		Mark:            168,
		Len:             112,
		Protocol:        180,
		Dev:             16,
		Head:            200,
		NetworkHeader:   194,
		TransportHeader: 192,
		DevIfindex:      264,
		DevMTU:          472,
	}, nil
}

// Select picks the resolver for the detected platform capabilities: the
// relocating strategy when type descriptors are available, the fixed table
// otherwise.
func Select(caps Capabilities) (Resolver, error) {
	if caps.TypeDescriptors {
		r, err := NewKernelBTF()
		if err != nil {
			return nil, fmt.Errorf("layout: load kernel type descriptors: %w", err)
		}
		return r, nil
	}
	return Fixed{}, nil
}
