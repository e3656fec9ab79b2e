package printer

import (
	"context"
	"fmt"
	"time"

	"github.com/thereceipt/receipt-dispatcher/internal/transport"
)

// Status is the translated printer state
type Status string

const (
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
	StatusBusy     Status = "busy"
	StatusError    Status = "error"
	StatusPaperOut Status = "paperOut"
)

// Spooler status bits (PRINTER_INFO_2.Status)
const (
	StatusBitPaused   uint32 = 0x00000001
	StatusBitError    uint32 = 0x00000002
	StatusBitPaperOut uint32 = 0x00000010
	StatusBitOffline  uint32 = 0x00000080
	StatusBitBusy     uint32 = 0x00000200
)

// ProbeTimeout bounds the network connect-and-close status probe
const ProbeTimeout = 2 * time.Second

// StatusFromBits translates a spooler status bitmask. OFFLINE wins over every
// other bit, then PAPER_OUT, BUSY and ERROR.
func StatusFromBits(bits uint32) Status {
	switch {
	case bits&StatusBitOffline != 0:
		return StatusOffline
	case bits&StatusBitPaperOut != 0:
		return StatusPaperOut
	case bits&StatusBitBusy != 0:
		return StatusBusy
	case bits&StatusBitError != 0:
		return StatusError
	}
	return StatusOnline
}

// Capabilities is the decoded status plus the flags hosts display
type Capabilities struct {
	Status   Status  `json:"status"`
	Raw      *uint32 `json:"rawStatus,omitempty"`
	Online   bool    `json:"isOnline"`
	Busy     bool    `json:"isBusy"`
	HasPaper bool    `json:"hasPaper"`
	HasError bool    `json:"hasError"`
	Paused   bool    `json:"isPaused"`
}

// CapabilitiesFromBits decodes every flag of a spooler bitmask
func CapabilitiesFromBits(bits uint32) Capabilities {
	raw := bits
	return Capabilities{
		Status:   StatusFromBits(bits),
		Raw:      &raw,
		Online:   bits&StatusBitOffline == 0,
		Busy:     bits&StatusBitBusy != 0,
		HasPaper: bits&StatusBitPaperOut == 0,
		HasError: bits&StatusBitError != 0,
		Paused:   bits&StatusBitPaused != 0,
	}
}

func capabilitiesFor(s Status) Capabilities {
	return Capabilities{
		Status:   s,
		Online:   s != StatusOffline,
		Busy:     s == StatusBusy,
		HasPaper: s != StatusPaperOut,
		HasError: s == StatusError,
	}
}

// StatusSource answers per-transport status questions
type StatusSource interface {
	// SpoolerStatus returns the status bitmask of a print queue
	SpoolerStatus(ctx context.Context, queue string) (uint32, error)
	// USBPresent reports whether the device is currently attached
	USBPresent(ctx context.Context, vid, pid uint16) bool
	// Probe connects to addr and closes immediately
	Probe(ctx context.Context, addr string, timeout time.Duration) error
}

// QueryStatus re-probes the printer. Every call does fresh I/O.
func (m *Manager) QueryStatus(ctx context.Context, d Descriptor) Status {
	return m.Capabilities(ctx, d).Status
}

// Capabilities re-probes the printer and returns every decoded flag
func (m *Manager) Capabilities(ctx context.Context, d Descriptor) Capabilities {
	c := d.Connection
	switch {
	case c.Kind == ConnNetwork && c.Host != "":
		if err := m.status.Probe(ctx, c.Address(), m.probe); err != nil {
			m.logger.Sugar().Debugf("probe %s failed: %v", c.Address(), err)
			return capabilitiesFor(StatusOffline)
		}
		return capabilitiesFor(StatusOnline)

	case c.QueueName != "":
		bits, err := m.status.SpoolerStatus(ctx, c.QueueName)
		if err != nil {
			m.logger.Sugar().Debugf("spooler status %s failed: %v", c.QueueName, err)
			return capabilitiesFor(StatusOffline)
		}
		return CapabilitiesFromBits(bits)

	case c.Kind == ConnUSB:
		if m.status.USBPresent(ctx, c.VID, c.PID) {
			return capabilitiesFor(StatusOnline)
		}
		return capabilitiesFor(StatusOffline)

	case c.Kind == ConnSerial:
		conn, err := transport.NewSerial(c.Device, c.Baud).Connect(ctx)
		if err != nil {
			return capabilitiesFor(StatusOffline)
		}
		conn.Close()
		return capabilitiesFor(StatusOnline)
	}
	return capabilitiesFor(StatusOffline)
}

// hostStatus is the StatusSource used outside tests
type hostStatus struct {
	spooler func(ctx context.Context, queue string) (uint32, error)
}

// DefaultStatusSource returns the platform status source
func DefaultStatusSource() StatusSource {
	return hostStatus{spooler: spoolerStatus}
}

func (h hostStatus) SpoolerStatus(ctx context.Context, queue string) (uint32, error) {
	if h.spooler == nil {
		return 0, fmt.Errorf("spooler status: %w", transport.ErrUnavailable)
	}
	return h.spooler(ctx, queue)
}

func (h hostStatus) USBPresent(ctx context.Context, vid, pid uint16) bool {
	return usbPresent(vid, pid)
}

func (h hostStatus) Probe(ctx context.Context, addr string, timeout time.Duration) error {
	return transport.Probe(ctx, addr, timeout)
}
