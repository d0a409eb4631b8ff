package config

import (
	"errors"
	"sync/atomic"
)

// Key is the constant index of the single configuration entry.
const Key = 0

// ErrAlreadyPublished is returned by Publish after the first call; the
// record is immutable for the lifetime of all attachments.
var ErrAlreadyPublished = errors.New("config: already published")

// Map is the singleton configuration table. Lookup on the hot path is a
// single atomic pointer load; there is no write path after Publish.
type Map struct {
	cfg atomic.Pointer[Config]
}

// NewMap returns an empty table; Lookup reports absent until the loader
// publishes.
func NewMap() *Map {
	return &Map{}
}

// Publish installs the configuration. Only the first call succeeds.
func (m *Map) Publish(c Config) error {
	cp := c
	if !m.cfg.CompareAndSwap(nil, &cp) {
		return ErrAlreadyPublished
	}
	return nil
}

// Lookup returns the published configuration, or ok=false when the loader
// has not published yet. The returned pointer must be treated as
// read-only.
func (m *Map) Lookup() (*Config, bool) {
	c := m.cfg.Load()
	return c, c != nil
}
