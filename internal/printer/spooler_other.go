//go:build !windows

package printer

import (
	"context"
	"fmt"
	"os/exec"
)

// SpoolerEnumerator lists CUPS queues through lpstat
type SpoolerEnumerator struct{}

// Name implements Enumerator
func (e *SpoolerEnumerator) Name() string { return "cups" }

// Scopes implements Enumerator
func (e *SpoolerEnumerator) Scopes() []Scope {
	return []Scope{ScopeUSB, ScopeNetwork, ScopeLocal}
}

// Enumerate implements Enumerator. A host without CUPS has no queues.
func (e *SpoolerEnumerator) Enumerate(ctx context.Context) ([]Candidate, error) {
	if _, err := exec.LookPath("lpstat"); err != nil {
		return nil, nil
	}
	out, err := exec.CommandContext(ctx, "lpstat", "-v").Output()
	if err != nil {
		// lpstat exits non-zero when no destinations exist
		return nil, nil
	}
	return cupsCandidates(parseLpstatDevices(string(out))), nil
}

func spoolerStatus(ctx context.Context, queue string) (uint32, error) {
	out, err := exec.CommandContext(ctx, "lpstat", "-p", queue).Output()
	if err != nil {
		return 0, fmt.Errorf("lpstat -p %s: %w", queue, err)
	}
	return parseLpstatStatus(string(out)), nil
}

// DefaultEnumerators returns the platform enumerators in discovery order
func DefaultEnumerators(extraVendors []uint16) []Enumerator {
	return []Enumerator{
		&USBEnumerator{ExtraVendors: extraVendors},
		&SpoolerEnumerator{},
	}
}
