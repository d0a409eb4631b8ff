package event

import "testing"

func TestEncodeDecode(t *testing.T) {
	in := Event{
		PID:        4242,
		Type:       3,
		Addr:       0xffffffff81001234,
		SkbAddr:    0xffff888000001000,
		TS:         987654321,
		PrintSkbID: 17,
		Meta: Meta{
			Mark:     5,
			Ifindex:  2,
			Len:      1514,
			MTU:      1500,
			Protocol: 0x0008,
		},
		Tuple: Tuple{
			SAddr: 0xc0a80101, // 192.168.1.1
			DAddr: 0xc0a80102,
			SPort: 4444,
			DPort: 443,
			Proto: 6,
		},
		PrintStackID: -1,
	}

	raw := in.Encode()
	out, err := Decode(raw[:])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}

	if got := out.Tuple.Src().String(); got != "192.168.1.1" {
		t.Fatalf("unexpected src: %s", got)
	}
	if got := out.Tuple.Dst().String(); got != "192.168.1.2" {
		t.Fatalf("unexpected dst: %s", got)
	}
}

func TestDecodeShort(t *testing.T) {
	if _, err := Decode(make([]byte, Size-1)); err == nil {
		t.Fatal("expected error for short record")
	}
}

func TestTupleWireOrder(t *testing.T) {
	// Addresses and ports must land on the wire in network byte order.
	e := Event{Tuple: Tuple{SAddr: 0x0a000001, SPort: 80}}
	raw := e.Encode()
	if raw[60] != 10 || raw[61] != 0 || raw[62] != 0 || raw[63] != 1 {
		t.Fatalf("saddr bytes not network order: % x", raw[60:64])
	}
	if raw[68] != 0 || raw[69] != 80 {
		t.Fatalf("sport bytes not network order: % x", raw[68:70])
	}
}
