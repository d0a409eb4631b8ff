package kmem

import "sort"

// Sparse is an in-memory sparse address space. It backs tests and offline
// replay of captured object images: regions are mapped at arbitrary
// addresses and reads touching any unmapped byte fail, which models the
// invalid-pointer behavior of a live traced address space.
//
// Sparse is safe for concurrent reads once all regions are mapped.
type Sparse struct {
	regions []region
}

type region struct {
	base uint64
	data []byte
}

// NewSparse returns an empty address space; every read faults until
// regions are mapped.
func NewSparse() *Sparse {
	return &Sparse{}
}

// Map places a copy of data at base. Overlapping or adjacent regions are
// allowed; the most recently mapped region wins on lookup.
func (s *Sparse) Map(base uint64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.regions = append(s.regions, region{base: base, data: cp})
}

// ReadAt implements Reader.
func (s *Sparse) ReadAt(addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	// Newest mapping wins, matching Map's contract.
	for i := len(s.regions) - 1; i >= 0; i-- {
		r := s.regions[i]
		if addr < r.base {
			continue
		}
		// Both checks guard the unsigned sum against wrapping for reads
		// near the top of the address space.
		off := addr - r.base
		if off >= uint64(len(r.data)) || uint64(len(buf)) > uint64(len(r.data))-off {
			continue
		}
		copy(buf, r.data[off:])
		return nil
	}
	return fault(addr, len(buf), nil)
}

// Regions returns the mapped bases in ascending order, mainly for
// debugging test fixtures.
func (s *Sparse) Regions() []uint64 {
	bases := make([]uint64, 0, len(s.regions))
	for _, r := range s.regions {
		bases = append(bases, r.base)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	return bases
}
