//go:build windows

package printer

import (
	"context"

	"github.com/thereceipt/receipt-dispatcher/internal/winspool"
)

// SpoolerEnumerator lists Windows print queues. Every queue is a local
// candidate; queues on USB or TCP/IP ports are also USB or network candidates.
type SpoolerEnumerator struct{}

// Name implements Enumerator
func (e *SpoolerEnumerator) Name() string { return "spooler" }

// Scopes implements Enumerator
func (e *SpoolerEnumerator) Scopes() []Scope {
	return []Scope{ScopeUSB, ScopeNetwork, ScopeLocal}
}

// Enumerate implements Enumerator
func (e *SpoolerEnumerator) Enumerate(ctx context.Context) ([]Candidate, error) {
	queues, err := winspool.Enum()
	if err != nil {
		return nil, err
	}
	return spoolerCandidates(queues), nil
}

func spoolerCandidates(queues []winspool.Printer) []Candidate {
	var candidates []Candidate
	for _, q := range queues {
		base := Candidate{
			DisplayName: q.Name,
			DriverName:  q.Driver,
		}
		spool := Connection{QueueName: q.Name, DriverName: q.Driver, PortName: q.Port}

		local := base
		local.Prefix = PrefixLocal
		local.Connection = spool
		local.Connection.Kind = ConnSpooler
		candidates = append(candidates, local)

		switch ClassifyPort(q.Port) {
		case PortUSB:
			usb := base
			usb.Prefix = PrefixUSB
			usb.Connection = spool
			usb.Connection.Kind = ConnUSB
			candidates = append(candidates, usb)
		case PortNetwork:
			network := base
			network.Prefix = PrefixNetwork
			network.Connection = spool
			network.Connection.Kind = ConnNetwork
			if host := HostFromPort(q.Port); host != "" {
				network.Connection.Host = host
				network.Connection.Port = DefaultNetworkPort
			}
			candidates = append(candidates, network)
		}
	}
	return candidates
}

func spoolerStatus(ctx context.Context, queue string) (uint32, error) {
	return winspool.Status(queue)
}

// DefaultEnumerators returns the platform enumerators in discovery order
func DefaultEnumerators(extraVendors []uint16) []Enumerator {
	return []Enumerator{
		&USBEnumerator{ExtraVendors: extraVendors},
		&SpoolerEnumerator{},
	}
}
