package layout

import (
	"testing"

	"github.com/cilium/ebpf/btf"
	"go.uber.org/zap"
)

func TestParseKernelVersion(t *testing.T) {
	tests := []struct {
		release string
		want    KernelVersion
		wantErr bool
	}{
		{release: "5.15.0-91-generic", want: KernelVersion{5, 15, 0}},
		{release: "6.8.4", want: KernelVersion{6, 8, 4}},
		{release: "4.19", want: KernelVersion{4, 19, 0}},
		{release: "5.10.0+", want: KernelVersion{5, 10, 0}},
		{release: "banana", wantErr: true},
		{release: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.release, func(t *testing.T) {
			got, err := ParseKernelVersion(tt.release)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	gate := KernelVersion{5, 5, 0}
	tests := []struct {
		v    KernelVersion
		want bool
	}{
		{KernelVersion{5, 5, 0}, true},
		{KernelVersion{5, 6, 0}, true},
		{KernelVersion{6, 0, 0}, true},
		{KernelVersion{5, 4, 99}, false},
		{KernelVersion{4, 19, 0}, false},
	}
	for _, tt := range tests {
		if got := tt.v.AtLeast(gate); got != tt.want {
			t.Fatalf("%v.AtLeast(%v) = %v, want %v", tt.v, gate, got, tt.want)
		}
	}
}

func TestDetectGating(t *testing.T) {
	origUname, origStat := unameRelease, statPath
	t.Cleanup(func() { unameRelease, statPath = origUname, origStat })

	tests := []struct {
		name     string
		release  string
		btfFound bool
		want     bool
	}{
		{"new kernel with descriptors", "5.15.0-91-generic", true, true},
		{"new kernel without descriptors", "5.15.0", false, false},
		{"old kernel with descriptors", "5.4.0", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unameRelease = func() (string, error) { return tt.release, nil }
			statPath = func(string) bool { return tt.btfFound }

			caps := Detect(zap.NewNop())
			if caps.TypeDescriptors != tt.want {
				t.Fatalf("TypeDescriptors = %v, want %v", caps.TypeDescriptors, tt.want)
			}
		})
	}
}

func TestFixedOffsetsComplete(t *testing.T) {
	off, err := Fixed{}.Offsets()
	if err != nil {
		t.Fatalf("fixed offsets: %v", err)
	}
	for name, v := range map[string]uint64{
		"mark":             off.Mark,
		"len":              off.Len,
		"protocol":         off.Protocol,
		"head":             off.Head,
		"network_header":   off.NetworkHeader,
		"transport_header": off.TransportHeader,
		"dev_ifindex":      off.DevIfindex,
		"dev_mtu":          off.DevMTU,
	} {
		if v == 0 {
			t.Fatalf("fixed offset %s is zero", name)
		}
	}
}

func TestMemberOffsetNested(t *testing.T) {
	u32 := &btf.Int{Name: "u32", Size: 4}
	u16 := &btf.Int{Name: "u16", Size: 2}

	inner := &btf.Struct{
		Name: "",
		Size: 8,
		Members: []btf.Member{
			{Name: "network_header", Type: u16, Offset: 0},
			{Name: "mark", Type: u32, Offset: 32},
		},
	}
	outer := &btf.Struct{
		Name: "sk_buff",
		Size: 24,
		Members: []btf.Member{
			{Name: "len", Type: u32, Offset: 0},
			{Name: "", Type: inner, Offset: 64},
			{Name: "head", Type: u32, Offset: 128},
		},
	}

	tests := []struct {
		field string
		want  uint64
	}{
		{"len", 0},
		{"network_header", 8},
		{"mark", 12},
		{"head", 16},
	}
	for _, tt := range tests {
		got, ok := memberOffset(outer, tt.field)
		if !ok {
			t.Fatalf("member %q not found", tt.field)
		}
		if got != tt.want {
			t.Fatalf("offset of %q = %d, want %d", tt.field, got, tt.want)
		}
	}

	if _, ok := memberOffset(outer, "missing"); ok {
		t.Fatal("expected lookup miss for unknown member")
	}
}
