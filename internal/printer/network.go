package printer

import (
	"context"

	"github.com/thereceipt/receipt-dispatcher/internal/registry"
)

// NetworkSource lists operator-declared network printers
type NetworkSource interface {
	All() []registry.Entry
}

// NetworkEnumerator surfaces declared network printers. They are receipt
// printers by declaration and are not probed during discovery.
type NetworkEnumerator struct {
	Source NetworkSource
}

// Name implements Enumerator
func (e *NetworkEnumerator) Name() string { return "registry" }

// Scopes implements Enumerator
func (e *NetworkEnumerator) Scopes() []Scope { return []Scope{ScopeNetwork} }

// Enumerate implements Enumerator
func (e *NetworkEnumerator) Enumerate(ctx context.Context) ([]Candidate, error) {
	if e.Source == nil {
		return nil, nil
	}

	entries := e.Source.All()
	candidates := make([]Candidate, 0, len(entries))
	for _, entry := range entries {
		port := entry.Port
		if port == 0 {
			port = DefaultNetworkPort
		}
		name := entry.Name
		if name == "" {
			name = entry.Key()
		}
		candidates = append(candidates, Candidate{
			Prefix:      PrefixNetwork,
			DisplayName: name,
			DriverName:  entry.Model,
			Declared:    true,
			Connection: Connection{
				Kind: ConnNetwork,
				Host: entry.Host,
				Port: port,
			},
		})
	}
	return candidates, nil
}
