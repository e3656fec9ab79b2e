package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/thereceipt/receipt-dispatcher/internal/transport"
)

// Config holds dispatcher settings shared across calls. The debug flag has a
// single writer, SetDebug; every other field is fixed after construction.
type Config struct {
	// NetworkTimeout bounds the TCP connect of a print job
	NetworkTimeout time.Duration
	// PaperSize applies to requests that name none
	PaperSize string
	// SerializeDevices holds a per-device lock for the whole session
	SerializeDevices bool

	debug     atomic.Bool
	mu        sync.Mutex
	listeners []func(bool)
}

// NewConfig returns a Config with the default network timeout and device
// serialization on
func NewConfig() *Config {
	return &Config{
		NetworkTimeout:   transport.PrintTimeout,
		SerializeDevices: true,
	}
}

// Debug reports whether debug logging is on
func (c *Config) Debug() bool {
	return c.debug.Load()
}

// SetDebug turns debug logging on or off and notifies listeners
func (c *Config) SetDebug(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.debug.Swap(enabled) == enabled {
		return
	}
	for _, fn := range c.listeners {
		fn(enabled)
	}
}

// OnDebugChange registers fn to run after the flag changes
func (c *Config) OnDebugChange(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}
