package printer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMonitorInterval is used when NewMonitor gets a zero interval
const DefaultMonitorInterval = 5 * time.Second

// Monitor re-runs discovery on an interval and reports receipt printers that
// appeared or disappeared since the previous pass
type Monitor struct {
	manager  *Manager
	interval time.Duration
	logger   *zap.Logger

	onAdded   func(Descriptor)
	onRemoved func(Descriptor)

	previous map[string]Descriptor
	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewMonitor creates a new printer monitor
func NewMonitor(manager *Manager, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		manager:  manager,
		interval: interval,
		logger:   logger,
		previous: make(map[string]Descriptor),
	}
}

// OnAdded sets the callback for new printers
func (m *Monitor) OnAdded(fn func(Descriptor)) { m.onAdded = fn }

// OnRemoved sets the callback for removed printers
func (m *Monitor) OnRemoved(fn func(Descriptor)) { m.onRemoved = fn }

// Start begins monitoring until ctx is done or Stop is called
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.Check(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Stop stops the monitor and waits for the running pass
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Check runs one pass. Printers are matched by identity key, since ids are
// only stable within a pass.
func (m *Monitor) Check(ctx context.Context) (added, removed []Descriptor) {
	current := make(map[string]Descriptor)
	for _, d := range m.manager.Discover(ctx, ScopeAll) {
		current[d.IdentityKey()] = d
	}
	if ctx.Err() != nil {
		return nil, nil
	}

	m.mu.Lock()
	for key, d := range current {
		if _, exists := m.previous[key]; !exists {
			added = append(added, d)
		}
	}
	for key, d := range m.previous {
		if _, exists := current[key]; !exists {
			removed = append(removed, d)
		}
	}
	m.previous = current
	m.mu.Unlock()

	for _, d := range added {
		m.logger.Info("printer added", zap.String("id", d.ID), zap.String("name", d.DisplayName))
		if m.onAdded != nil {
			m.onAdded(d)
		}
	}
	for _, d := range removed {
		m.logger.Info("printer removed", zap.String("id", d.ID), zap.String("name", d.DisplayName))
		if m.onRemoved != nil {
			m.onRemoved(d)
		}
	}
	return added, removed
}
