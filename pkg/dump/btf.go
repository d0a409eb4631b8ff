package dump

import (
	"fmt"
	"strconv"

	"github.com/cilium/ebpf/btf"

	"github.com/zhangbo1882/pwru/pkg/kmem"
)

// BTFFormatter renders an object as "(struct name){.field = value, ...}"
// by walking the struct's type descriptors once at construction and
// reading each integer member through the bounded reader at format time.
// Unreadable members are skipped; the rendering is truncated at the
// destination size. Format never allocates.
type BTFFormatter struct {
	mem      kmem.Reader
	typeName string
	fields   []field
}

type field struct {
	name string
	off  uint64
	size uint32
}

// NewBTFFormatter resolves typeName in spec and prepares the field walk.
func NewBTFFormatter(spec *btf.Spec, typeName string, mem kmem.Reader) (*BTFFormatter, error) {
	var st *btf.Struct
	if err := spec.TypeByName(typeName, &st); err != nil {
		return nil, fmt.Errorf("dump: resolve %s: %w", typeName, err)
	}
	return NewStructFormatter(st, mem), nil
}

// NewStructFormatter builds a formatter from an already resolved struct
// descriptor.
func NewStructFormatter(st *btf.Struct, mem kmem.Reader) *BTFFormatter {
	f := &BTFFormatter{mem: mem, typeName: st.Name}
	f.collect(st.Members, 0)
	return f
}

// collect flattens integer members, descending into anonymous structs and
// unions. Bitfields and non-integer members are left out; the dump is a
// bounded sketch of the object, not a complete decoding.
func (f *BTFFormatter) collect(members []btf.Member, baseBits btf.Bits) {
	for _, m := range members {
		bits := baseBits + m.Offset
		if m.BitfieldSize != 0 {
			continue
		}
		switch t := btf.UnderlyingType(m.Type).(type) {
		case *btf.Int:
			if m.Name == "" {
				continue
			}
			switch t.Size {
			case 1, 2, 4, 8:
				f.fields = append(f.fields, field{name: m.Name, off: uint64(bits / 8), size: t.Size})
			}
		case *btf.Struct:
			if m.Name == "" {
				f.collect(t.Members, bits)
			}
		case *btf.Union:
			if m.Name == "" {
				f.collect(t.Members, bits)
			}
		}
	}
}

// Format implements Formatter.
func (f *BTFFormatter) Format(dst []byte, objAddr uint64) (int, error) {
	// Probe the object first so a dangling pointer fails the whole dump
	// instead of rendering an empty shell.
	if _, err := kmem.U8(f.mem, objAddr); err != nil {
		return 0, err
	}

	w := boundedWriter{dst: dst}
	w.str("(struct ")
	w.str(f.typeName)
	w.str("){")

	var scratch [20]byte
	for i := range f.fields {
		fd := &f.fields[i]
		v, err := f.read(objAddr + fd.off, fd.size)
		if err != nil {
			continue
		}
		w.str(".")
		w.str(fd.name)
		w.str(" = ")
		w.bytes(strconv.AppendUint(scratch[:0], v, 10))
		w.str(", ")
	}
	w.str("}")
	return w.n, nil
}

func (f *BTFFormatter) read(addr uint64, size uint32) (uint64, error) {
	switch size {
	case 1:
		v, err := kmem.U8(f.mem, addr)
		return uint64(v), err
	case 2:
		v, err := kmem.U16(f.mem, addr)
		return uint64(v), err
	case 4:
		v, err := kmem.U32(f.mem, addr)
		return uint64(v), err
	default:
		return kmem.U64(f.mem, addr)
	}
}

// boundedWriter appends into a fixed buffer, silently truncating. One byte
// is reserved for the terminator.
type boundedWriter struct {
	dst []byte
	n   int
}

func (w *boundedWriter) str(s string) {
	for i := 0; i < len(s) && w.n < len(w.dst)-1; i++ {
		w.dst[w.n] = s[i]
		w.n++
	}
}

func (w *boundedWriter) bytes(b []byte) {
	for i := 0; i < len(b) && w.n < len(w.dst)-1; i++ {
		w.dst[w.n] = b[i]
		w.n++
	}
}
