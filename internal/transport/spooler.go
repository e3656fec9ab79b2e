package transport

import "fmt"

// DocName is the spooler job name of every receipt
const DocName = "Receipt"

// Spooler submits RAW jobs to a named print queue
type Spooler struct {
	Queue   string
	DocName string
}

// NewSpooler creates a spooler transport for queue
func NewSpooler(queue string) *Spooler {
	return &Spooler{Queue: queue, DocName: DocName}
}

// Kind implements Transport
func (s *Spooler) Kind() string { return KindSpooler }

// Target implements Transport
func (s *Spooler) Target() string { return s.Queue }

func (s *Spooler) check() error {
	if s.Queue == "" {
		return fmt.Errorf("print queue: %w", ErrUnavailable)
	}
	return nil
}
