// Package transport moves encoded bytes to a printer over USB, TCP, the
// platform print spooler or a serial line.
package transport

import (
	"context"
	"time"
)

// Kinds reported by Transport.Kind
const (
	KindUSB     = "usb"
	KindNetwork = "network"
	KindSpooler = "local"
	KindSerial  = "serial"
)

const (
	// PrintTimeout bounds the TCP connect of a print job
	PrintTimeout = 5 * time.Second
	// ProbeTimeout bounds the TCP connect of a status probe
	ProbeTimeout = 2 * time.Second
)

// Conn is an open handle to one printer
type Conn interface {
	Write(p []byte) (int, error)
	Close() error
}

// Transport opens connections to one printer
type Transport interface {
	// Kind is one of the Kind constants
	Kind() string
	// Target describes the destination for logs
	Target() string
	// Connect opens a new connection. Implementations never share handles
	// between calls.
	Connect(ctx context.Context) (Conn, error)
}
