package transport

import (
	"context"
	"fmt"

	"github.com/tarm/serial"
)

// DefaultBaud is the rate most thermal printers ship with
const DefaultBaud = 9600

// Serial writes to a serial device such as /dev/ttyUSB0 or COM3
type Serial struct {
	Device string
	Baud   int
}

// NewSerial creates a serial transport. A zero baud uses DefaultBaud.
func NewSerial(device string, baud int) *Serial {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return &Serial{Device: device, Baud: baud}
}

// Kind implements Transport
func (s *Serial) Kind() string { return KindSerial }

// Target implements Transport
func (s *Serial) Target() string { return s.Device }

// Connect opens the port
func (s *Serial) Connect(ctx context.Context) (Conn, error) {
	if s.Device == "" {
		return nil, fmt.Errorf("serial device: %w", ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := serial.OpenPort(&serial.Config{Name: s.Device, Baud: s.Baud})
	if err != nil {
		return nil, fmt.Errorf("%w: serial %s: %v", ErrConnect, s.Device, err)
	}
	return port, nil
}
