package printer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Candidate is one raw entry reported by an enumerator, before classification
type Candidate struct {
	Prefix      string
	DisplayName string
	DriverName  string
	Connection  Connection

	// Declared candidates were configured by an operator and skip the
	// thermal keyword filter.
	Declared bool
}

// Enumerator lists printer candidates from one source
type Enumerator interface {
	// Name identifies the source in logs
	Name() string
	// Scopes lists the discovery scopes this enumerator contributes to
	Scopes() []Scope
	// Enumerate lists candidates in a stable order
	Enumerate(ctx context.Context) ([]Candidate, error)
}

// Manager runs discovery passes and answers status queries
type Manager struct {
	enumerators []Enumerator
	status      StatusSource
	paperWidth  int
	probe       time.Duration
	logger      *zap.Logger

	// observer is notified after every pass, used for metrics
	observer func(scope Scope, found int, err error)
	mu       sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithEnumerators replaces the platform default enumerators
func WithEnumerators(e ...Enumerator) Option {
	return func(m *Manager) { m.enumerators = e }
}

// WithStatusSource replaces the platform status source
func WithStatusSource(s StatusSource) Option {
	return func(m *Manager) { m.status = s }
}

// WithPaperWidth sets the column count assigned to discovered printers
func WithPaperWidth(width int) Option {
	return func(m *Manager) {
		if width > 0 {
			m.paperWidth = width
		}
	}
}

// WithProbeTimeout bounds network status probes
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.probe = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithObserver registers a callback run after each discovery pass
func WithObserver(fn func(scope Scope, found int, err error)) Option {
	return func(m *Manager) { m.observer = fn }
}

// NewManager creates a new printer manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		paperWidth: 48,
		probe:      ProbeTimeout,
		logger:     zap.NewNop(),
		status:     DefaultStatusSource(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddEnumerator appends an enumerator
func (m *Manager) AddEnumerator(e Enumerator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enumerators = append(m.enumerators, e)
}

// Discover returns the receipt printers visible in scope. Enumeration
// failures are logged and yield fewer results, never an error.
func (m *Manager) Discover(ctx context.Context, scope Scope) []Descriptor {
	all := m.discover(ctx, scope)

	receipts := make([]Descriptor, 0, len(all))
	for _, d := range all {
		if d.Kind == KindReceipt {
			receipts = append(receipts, d)
		}
	}

	if m.observer != nil {
		m.observer(scope, len(receipts), nil)
	}
	return receipts
}

// DiscoverAll returns every enumerated printer, receipt or not, for diagnostics
func (m *Manager) DiscoverAll(ctx context.Context) []Descriptor {
	return m.discover(ctx, ScopeAll)
}

func (m *Manager) discover(ctx context.Context, scope Scope) []Descriptor {
	m.mu.RLock()
	enumerators := append([]Enumerator(nil), m.enumerators...)
	m.mu.RUnlock()

	// Index counters run per prefix over every candidate enumerated in this
	// pass so ids are unique within the pass and identical between
	// Discover and DiscoverAll.
	counters := make(map[string]int)
	descriptors := make([]Descriptor, 0)

	for _, e := range enumerators {
		if !coversScope(e, scope) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		candidates, err := e.Enumerate(ctx)
		if err != nil {
			m.logger.Warn("printer enumeration failed", zap.String("source", e.Name()), zap.Error(err))
			if m.observer != nil {
				m.observer(scope, 0, err)
			}
			continue
		}

		for _, c := range candidates {
			index := counters[c.Prefix]
			counters[c.Prefix]++

			if !prefixInScope(c.Prefix, scope) {
				continue
			}
			descriptors = append(descriptors, m.describe(c, index))
		}
	}

	m.logger.Debug("discovery pass complete", zap.String("scope", string(scope)), zap.Int("found", len(descriptors)))
	return descriptors
}

func (m *Manager) describe(c Candidate, index int) Descriptor {
	kind := KindGeneric
	if c.Declared || IsThermal(c.DriverName, c.DisplayName) ||
		(c.Connection.Kind == ConnUSB && IsReceiptVendor(c.Connection.VID)) {
		kind = KindReceipt
	}

	name := c.DisplayName
	if name == "" {
		name = fmt.Sprintf("%s printer %d", c.Connection.Kind, index)
	}

	return Descriptor{
		ID:          c.Prefix + strconv.Itoa(index),
		DisplayName: name,
		Kind:        kind,
		Connection:  c.Connection,
		PaperWidth:  m.paperWidth,
		ModelHint:   c.DriverName,
	}
}

// Find returns the descriptor with id. The pass covers only the scope the
// id's prefix names, so resolving a network printer never opens serial ports.
// Ids match a full pass because counters run per prefix.
func (m *Manager) Find(ctx context.Context, id string) (Descriptor, bool) {
	for _, d := range m.discover(ctx, ScopeForID(id)) {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// FindUSB returns the first USB receipt printer matching one of ids, or the
// first USB receipt printer at all when ids is empty
func (m *Manager) FindUSB(ctx context.Context, ids ...USBID) (Descriptor, bool) {
	for _, d := range m.Discover(ctx, ScopeUSB) {
		if d.Connection.Kind != ConnUSB {
			continue
		}
		if len(ids) == 0 {
			return d, true
		}
		for _, id := range ids {
			if id.Matches(d) {
				return d, true
			}
		}
	}
	return Descriptor{}, false
}

func coversScope(e Enumerator, scope Scope) bool {
	if scope == ScopeAll {
		return true
	}
	for _, s := range e.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

func prefixInScope(prefix string, scope Scope) bool {
	switch scope {
	case ScopeUSB:
		return prefix == PrefixUSB
	case ScopeNetwork:
		return prefix == PrefixNetwork
	case ScopeLocal:
		return prefix == PrefixLocal
	}
	return true
}
