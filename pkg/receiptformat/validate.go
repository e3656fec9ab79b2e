package receiptformat

import (
	"fmt"
	"strings"
)

var validTransports = []string{TransportUSB, TransportNetwork, TransportLocal, TransportSerial}

// Validate checks the request-level fields of a PrintRequest.
// Document content and paper size are never rejected here; the encoder
// degrades and unknown paper sizes print at 48 columns.
func Validate(r *PrintRequest) error {
	if r.PrinterID == "" && r.Connection.TransportKind == "" {
		return fmt.Errorf("printerId or connectionDetails.transportKind is required")
	}

	if kind := r.Connection.TransportKind; kind != "" {
		valid := false
		for _, t := range validTransports {
			if kind == t {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid transportKind: %s (must be %s)", kind, strings.Join(validTransports, ", "))
		}
	}

	if r.Connection.Port < 0 || r.Connection.Port > 65535 {
		return fmt.Errorf("invalid port: %d", r.Connection.Port)
	}

	return nil
}
