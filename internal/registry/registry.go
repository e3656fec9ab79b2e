// Package registry stores operator-declared network printers
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// DefaultPort is the raw printing port
const DefaultPort = 9100

// Entry is one declared network printer
type Entry struct {
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Name      string    `json:"name,omitempty"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Key identifies an entry by address
func (e Entry) Key() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// Registry keeps declared printers in insertion order. With an empty file
// path it is purely in-memory.
type Registry struct {
	filePath string
	entries  []Entry
	mu       sync.RWMutex
}

// New creates a new Registry, loading filePath when it exists
func New(filePath string) (*Registry, error) {
	r := &Registry{filePath: filePath}

	if filePath == "" {
		return r, nil
	}
	if err := r.load(); err != nil {
		// A missing file is created on first save
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load registry: %w", err)
		}
	}

	return r, nil
}

// Add declares a network printer. Adding an existing address updates its
// name and model and returns the stored entry.
func (r *Registry) Add(host string, port int, name, model string) (Entry, error) {
	if host == "" {
		return Entry{}, fmt.Errorf("host is required")
	}
	if port == 0 {
		port = DefaultPort
	}
	if port < 0 || port > 65535 {
		return Entry{}, fmt.Errorf("invalid port: %d", port)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := Entry{Host: host, Port: port, Name: name, Model: model, CreatedAt: time.Now()}
	for i, e := range r.entries {
		if e.Key() == entry.Key() {
			entry.CreatedAt = e.CreatedAt
			r.entries[i] = entry
			return entry, r.save()
		}
	}

	r.entries = append(r.entries, entry)
	return entry, r.save()
}

// Remove deletes the entry at host:port
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.Key() == key {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			_ = r.save()
			return true
		}
	}
	return false
}

// Rename sets the display name of the entry at host:port
func (r *Registry) Rename(key, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.Key() == key {
			r.entries[i].Name = name
			_ = r.save()
			return true
		}
	}
	return false
}

// All returns a copy of the entries in insertion order
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// Len returns the number of entries
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &r.entries)
}

func (r *Registry) save() error {
	if r.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(r.filePath, data, 0644)
}
