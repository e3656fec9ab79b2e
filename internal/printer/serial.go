package printer

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tarm/serial"
)

// SerialEnumerator lists serial ports that can be opened. Serial ports are
// diagnostic only and never surface in the scoped receipt queries.
type SerialEnumerator struct {
	Baud int
}

// Name implements Enumerator
func (e *SerialEnumerator) Name() string { return "serial" }

// Scopes implements Enumerator
func (e *SerialEnumerator) Scopes() []Scope { return nil }

// Enumerate lists the ports that open successfully
func (e *SerialEnumerator) Enumerate(ctx context.Context) ([]Candidate, error) {
	baud := e.Baud
	if baud == 0 {
		baud = 9600
	}

	var candidates []Candidate
	for _, portPath := range SerialPorts() {
		if ctx.Err() != nil {
			return candidates, ctx.Err()
		}

		port, err := serial.OpenPort(&serial.Config{Name: portPath, Baud: baud})
		if err != nil {
			continue
		}
		port.Close()

		candidates = append(candidates, Candidate{
			Prefix:      PrefixSerial,
			DisplayName: fmt.Sprintf("Serial: %s", filepath.Base(portPath)),
			Connection:  Connection{Kind: ConnSerial, Device: portPath, Baud: baud},
		})
	}
	return candidates, nil
}

// SerialPorts returns the platform's candidate serial device paths
func SerialPorts() []string {
	var ports []string

	switch runtime.GOOS {
	case "darwin":
		skipPatterns := []string{"Bluetooth", "Modem", "SPP", "DialIn", "Callout", "KeySerial", "debug-console"}
		cuPorts, _ := filepath.Glob("/dev/cu.*")

		for _, port := range cuPorts {
			skip := false
			for _, pattern := range skipPatterns {
				if strings.Contains(port, pattern) {
					skip = true
					break
				}
			}
			if !skip {
				ports = append(ports, port)
			}
		}

	case "linux":
		usbPorts, _ := filepath.Glob("/dev/ttyUSB*")
		acmPorts, _ := filepath.Glob("/dev/ttyACM*")
		ports = append(ports, usbPorts...)
		ports = append(ports, acmPorts...)

	case "windows":
		for i := 1; i <= 16; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
	}

	return ports
}
