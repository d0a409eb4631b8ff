package config

import (
	"encoding/binary"
	"fmt"
)

// Size is the byte length of the packed configuration record, the data
// contract between the external loader and this engine. Addresses and
// ports occupy the record in network byte order, exactly as the loader
// writes them; Decode converts the ports to host order for the in-memory
// Config.
const Size = 48

// Field offsets within the packed record.
const (
	offMark    = 0
	offIPv6    = 4
	offSAddr   = 5
	offDAddr   = 21
	offL4Proto = 37
	offSPort   = 38
	offDPort   = 40
	offOutTS   = 42
	offOutMeta = 43
	offOutTupl = 44
	offOutSkb  = 45
	offOutStck = 46
)

// Encode serializes the record into its fixed layout.
func (c *Config) Encode() [Size]byte {
	var b [Size]byte
	binary.LittleEndian.PutUint32(b[offMark:], c.Mark)
	b[offIPv6] = boolByte(c.IPv6)
	copy(b[offSAddr:], c.SAddr[:])
	copy(b[offDAddr:], c.DAddr[:])
	b[offL4Proto] = c.L4Proto
	binary.BigEndian.PutUint16(b[offSPort:], c.SPort)
	binary.BigEndian.PutUint16(b[offDPort:], c.DPort)
	b[offOutTS] = boolByte(c.Output.Timestamp)
	b[offOutMeta] = boolByte(c.Output.Meta)
	b[offOutTupl] = boolByte(c.Output.Tuple)
	b[offOutSkb] = boolByte(c.Output.Skb)
	b[offOutStck] = boolByte(c.Output.Stack)
	return b
}

// Decode parses a packed configuration record.
func Decode(raw []byte) (Config, error) {
	if len(raw) < Size {
		return Config{}, fmt.Errorf("config: short record: got=%d want>=%d", len(raw), Size)
	}
	var c Config
	c.Mark = binary.LittleEndian.Uint32(raw[offMark:])
	c.IPv6 = raw[offIPv6] != 0
	copy(c.SAddr[:], raw[offSAddr:offSAddr+16])
	copy(c.DAddr[:], raw[offDAddr:offDAddr+16])
	c.L4Proto = raw[offL4Proto]
	c.SPort = binary.BigEndian.Uint16(raw[offSPort:])
	c.DPort = binary.BigEndian.Uint16(raw[offDPort:])
	c.Output.Timestamp = raw[offOutTS] != 0
	c.Output.Meta = raw[offOutMeta] != 0
	c.Output.Tuple = raw[offOutTupl] != 0
	c.Output.Skb = raw[offOutSkb] != 0
	c.Output.Stack = raw[offOutStck] != 0
	return c, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
