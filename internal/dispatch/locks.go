package dispatch

import "sync"

// DeviceLocks serializes jobs on the same physical device. Locks are created
// on first use and kept for the process lifetime.
type DeviceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDeviceLocks creates an empty lock table
func NewDeviceLocks() *DeviceLocks {
	return &DeviceLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until key is free and returns the unlock function
func (d *DeviceLocks) Lock(key string) func() {
	d.mu.Lock()
	l, ok := d.locks[key]
	if !ok {
		l = &sync.Mutex{}
		d.locks[key] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Len returns the number of known devices
func (d *DeviceLocks) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.locks)
}
