package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/internal/transport"
	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

// Finder looks printers up by discovery
type Finder interface {
	Find(ctx context.Context, id string) (printer.Descriptor, bool)
	FindUSB(ctx context.Context, ids ...printer.USBID) (printer.Descriptor, bool)
}

// Target is a resolved print destination
type Target struct {
	Descriptor printer.Descriptor
	Transport  transport.Transport
}

// Resolver turns a request into a descriptor and a transport
type Resolver struct {
	finder         Finder
	networkTimeout time.Duration

	// factory replaces TransportFor in tests
	factory func(printer.Descriptor) (transport.Transport, error)
}

// NewResolver creates a Resolver. finder may be nil when only explicit
// connection details are used.
func NewResolver(finder Finder, networkTimeout time.Duration) *Resolver {
	return &Resolver{finder: finder, networkTimeout: networkTimeout}
}

// Resolve finds the printer a request names. Explicit connection details win
// over the printer id.
func (r *Resolver) Resolve(ctx context.Context, req *receiptformat.PrintRequest) (Target, error) {
	d, err := r.Describe(ctx, req)
	if err != nil {
		return Target{}, err
	}
	build := r.TransportFor
	if r.factory != nil {
		build = r.factory
	}
	t, err := build(d)
	if err != nil {
		return Target{}, err
	}
	return Target{Descriptor: d, Transport: t}, nil
}

// Describe builds the descriptor a request points at without opening anything
func (r *Resolver) Describe(ctx context.Context, req *receiptformat.PrintRequest) (printer.Descriptor, error) {
	cd := req.Connection

	switch cd.TransportKind {
	case receiptformat.TransportNetwork:
		if cd.Host != "" {
			port := cd.Port
			if port == 0 {
				port = printer.DefaultNetworkPort
			}
			c := printer.Connection{Kind: printer.ConnNetwork, Host: cd.Host, Port: port}
			return adHoc(c, c.Address()), nil
		}

	case receiptformat.TransportUSB:
		if cd.PlatformSpecificID != "" {
			return r.describeUSB(ctx, cd.PlatformSpecificID)
		}

	case receiptformat.TransportLocal:
		queue := cd.PlatformSpecificID
		if queue == "" {
			queue = cd.DriverName
		}
		if queue != "" {
			c := printer.Connection{Kind: printer.ConnSpooler, QueueName: queue, DriverName: cd.DriverName}
			return adHoc(c, queue), nil
		}

	case receiptformat.TransportSerial:
		device := cd.Device
		if device == "" {
			device = cd.PlatformSpecificID
		}
		if device != "" {
			return adHoc(printer.Connection{Kind: printer.ConnSerial, Device: device, Baud: cd.Baud}, device), nil
		}
	}

	if req.PrinterID != "" && r.finder != nil {
		if d, ok := r.finder.Find(ctx, req.PrinterID); ok {
			return d, nil
		}
		return printer.Descriptor{}, fmt.Errorf("printer %s not found: %w", req.PrinterID, transport.ErrUnavailable)
	}

	// A bare usb request prints to the first receipt printer attached
	if cd.TransportKind == receiptformat.TransportUSB && r.finder != nil {
		if d, ok := r.finder.FindUSB(ctx); ok {
			return d, nil
		}
	}

	return printer.Descriptor{}, fmt.Errorf("no connection details for %q: %w", cd.TransportKind, transport.ErrUnavailable)
}

func (r *Resolver) describeUSB(ctx context.Context, platformID string) (printer.Descriptor, error) {
	ids, err := printer.USBIDCandidates(platformID)
	if err != nil {
		return printer.Descriptor{}, fmt.Errorf("%v: %w", err, transport.ErrUnavailable)
	}
	if r.finder != nil {
		if d, ok := r.finder.FindUSB(ctx, ids...); ok {
			return d, nil
		}
	}
	// Not enumerated as a receipt printer; connect still checks presence
	c := printer.Connection{Kind: printer.ConnUSB, VID: ids[0].VID, PID: ids[0].PID}
	return adHoc(c, ids[0].String()), nil
}

func adHoc(c printer.Connection, name string) printer.Descriptor {
	return printer.Descriptor{
		ID:          printer.PrefixFor(c.Kind) + printer.AdHocPrefix + name,
		DisplayName: name,
		Kind:        printer.KindReceipt,
		Connection:  c,
	}
}

// TransportFor picks the transport of a descriptor. Spooler-backed USB and
// network printers without direct addressing go through their queue.
func (r *Resolver) TransportFor(d printer.Descriptor) (transport.Transport, error) {
	c := d.Connection
	switch c.Kind {
	case printer.ConnNetwork:
		if c.Host != "" {
			port := c.Port
			if port == 0 {
				port = printer.DefaultNetworkPort
			}
			return transport.NewNetwork(c.Host, port, r.networkTimeout), nil
		}
	case printer.ConnUSB:
		if c.VID != 0 || c.PID != 0 {
			return transport.NewUSB(c.VID, c.PID, c.Serial), nil
		}
	case printer.ConnSerial:
		if c.Device != "" {
			return transport.NewSerial(c.Device, c.Baud), nil
		}
	}

	if strings.TrimSpace(c.QueueName) != "" {
		return transport.NewSpooler(c.QueueName), nil
	}
	return nil, fmt.Errorf("%s printer %q has no address: %w", c.Kind, d.ID, transport.ErrUnavailable)
}
