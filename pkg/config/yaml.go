package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// yamlConfig is the human-written form of the record. Addresses are dotted
// quads, ports host-order numbers, the protocol a name or a number.
type yamlConfig struct {
	Mark  uint32 `yaml:"mark"`
	SAddr string `yaml:"saddr"`
	DAddr string `yaml:"daddr"`
	Proto string `yaml:"proto"`
	SPort uint16 `yaml:"sport"`
	DPort uint16 `yaml:"dport"`
	Out   Output `yaml:"output"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var y yamlConfig
	if err := unmarshal(&y); err != nil {
		return err
	}

	out := Config{
		Mark:   y.Mark,
		SPort:  y.SPort,
		DPort:  y.DPort,
		Output: y.Out,
	}
	if y.SAddr != "" {
		v4, err := parseV4(y.SAddr)
		if err != nil {
			return fmt.Errorf("config: saddr: %w", err)
		}
		out.SAddr.SetV4(v4)
	}
	if y.DAddr != "" {
		v4, err := parseV4(y.DAddr)
		if err != nil {
			return fmt.Errorf("config: daddr: %w", err)
		}
		out.DAddr.SetV4(v4)
	}
	if y.Proto != "" {
		p, err := parseProto(y.Proto)
		if err != nil {
			return err
		}
		out.L4Proto = p
	}

	*c = out
	return nil
}

// Load reads a YAML filter file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

func parseV4(s string) ([4]byte, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return [4]byte{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	if !a.Is4() {
		return [4]byte{}, fmt.Errorf("address %q is not IPv4; IPv6 filtering is unsupported", s)
	}
	return a.As4(), nil
}

func parseProto(s string) (uint8, error) {
	switch strings.ToLower(s) {
	case "tcp":
		return ProtoTCP, nil
	case "udp":
		return ProtoUDP, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("config: unknown protocol %q", s)
	}
	return uint8(n), nil
}
