// Package printer handles printer discovery, classification, and status
package printer

import (
	"fmt"
	"strconv"
	"strings"
)

// Scope selects which enumerators a discovery pass consults
type Scope string

const (
	ScopeUSB     Scope = "usb"
	ScopeNetwork Scope = "network"
	ScopeLocal   Scope = "local"
	ScopeAll     Scope = "all"
)

// ParseScope converts a query value into a Scope, defaulting to all
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeUSB, ScopeNetwork, ScopeLocal:
		return Scope(s), nil
	}
	return "", fmt.Errorf("unknown scope: %s", s)
}

// Kind separates receipt printers from everything else the OS reports
type Kind string

const (
	KindReceipt Kind = "receipt"
	KindGeneric Kind = "generic"
)

// ConnKind is the transport a descriptor is reached through
type ConnKind string

const (
	ConnUSB     ConnKind = "usb"
	ConnNetwork ConnKind = "network"
	ConnSpooler ConnKind = "local"
	ConnSerial  ConnKind = "serial"
)

// Id prefixes encode the origin of a descriptor
const (
	PrefixUSB     = "usb_"
	PrefixNetwork = "net_"
	PrefixLocal   = "local_"
	PrefixSerial  = "serial_"
)

// AdHocPrefix marks descriptors built from connection details rather than
// enumerated, e.g. "net_adhoc_10.0.0.5:9100"
const AdHocPrefix = "adhoc_"

// PrefixFor returns the id prefix of a connection kind
func PrefixFor(kind ConnKind) string {
	switch kind {
	case ConnUSB:
		return PrefixUSB
	case ConnNetwork:
		return PrefixNetwork
	case ConnSpooler:
		return PrefixLocal
	case ConnSerial:
		return PrefixSerial
	}
	return ""
}

// ScopeForID returns the narrowest discovery scope that can yield id.
// Serial and unknown ids need a full pass.
func ScopeForID(id string) Scope {
	switch {
	case strings.HasPrefix(id, PrefixUSB):
		return ScopeUSB
	case strings.HasPrefix(id, PrefixNetwork):
		return ScopeNetwork
	case strings.HasPrefix(id, PrefixLocal):
		return ScopeLocal
	}
	return ScopeAll
}

// DefaultNetworkPort is the raw printing port used when none is known
const DefaultNetworkPort = 9100

// Connection describes how to reach a printer. Only the fields of Kind are set.
type Connection struct {
	Kind ConnKind `json:"kind"`

	// USB
	VID    uint16 `json:"vid,omitempty"`
	PID    uint16 `json:"pid,omitempty"`
	Serial string `json:"serialNumber,omitempty"`

	// Network
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// Spooler
	QueueName  string `json:"queueName,omitempty"`
	DriverName string `json:"driverName,omitempty"`
	PortName   string `json:"portName,omitempty"`

	// Serial
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`
}

// Address returns host:port for network connections
func (c Connection) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultNetworkPort
	}
	return c.Host + ":" + strconv.Itoa(port)
}

// IdentityKey identifies the physical device across discovery passes
func (c Connection) IdentityKey() string {
	switch c.Kind {
	case ConnUSB:
		if c.Serial != "" {
			return fmt.Sprintf("usb:%04X:%04X:%s", c.VID, c.PID, c.Serial)
		}
		if c.QueueName != "" {
			return "usb:queue:" + c.QueueName
		}
		return fmt.Sprintf("usb:%04X:%04X", c.VID, c.PID)
	case ConnNetwork:
		if c.Host == "" && c.QueueName != "" {
			return "network:queue:" + c.QueueName
		}
		return "network:" + c.Address()
	case ConnSpooler:
		return "local:" + c.QueueName
	case ConnSerial:
		return "serial:" + c.Device
	}
	return "unknown"
}

// Descriptor is one discovered printer. Descriptors are built fresh by every
// discovery pass and are not mutated afterwards.
type Descriptor struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"name"`
	Kind        Kind       `json:"type"`
	Connection  Connection `json:"connection"`
	PaperWidth  int        `json:"paperWidth"`
	ModelHint   string     `json:"modelName,omitempty"`
}

// IdentityKey identifies the physical device behind the descriptor
func (d Descriptor) IdentityKey() string {
	return d.Connection.IdentityKey()
}

// LockKey is the key used to serialize jobs on the same device
func (d Descriptor) LockKey() string {
	if d.Connection.Kind == ConnNetwork && d.Connection.Host != "" {
		return d.Connection.Address()
	}
	return d.IdentityKey()
}
