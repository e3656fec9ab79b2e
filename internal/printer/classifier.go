package printer

import (
	"net"
	"strings"
)

// ThermalKeywords are matched as lower-case substrings of driver and display names.
// The list is deliberately permissive; a missed receipt printer is worse than a
// false positive.
var ThermalKeywords = []string{
	"thermal", "receipt", "pos", "epson", "tm-", "t88", "t20", "imin", "star", "citizen",
}

// IsThermal reports whether either name looks like a thermal/receipt printer
func IsThermal(driverName, displayName string) bool {
	driver := strings.ToLower(driverName)
	display := strings.ToLower(displayName)
	for _, kw := range ThermalKeywords {
		if strings.Contains(driver, kw) || strings.Contains(display, kw) {
			return true
		}
	}
	return false
}

// KnownVendors are USB vendor ids of common receipt printer makers and the
// bridge chips they ship with
var KnownVendors = map[uint16]string{
	0x04B8: "Epson",
	0x0519: "Star Micronics",
	0x2730: "Citizen",
	0x0DD4: "Sewoo",
	0x0483: "STMicroelectronics",
	0x0416: "Winbond",
	0x28E9: "GD32",
	0x0FE6: "ICS Advent",
	0x06EA: "Silex",
}

// IsReceiptVendor reports whether vid is a known receipt printer vendor.
// extra extends the built-in table.
func IsReceiptVendor(vid uint16, extra ...uint16) bool {
	if _, ok := KnownVendors[vid]; ok {
		return true
	}
	for _, v := range extra {
		if v == vid {
			return true
		}
	}
	return false
}

// PaperWidth maps a paper size hint to a column count
func PaperWidth(hint string) int {
	switch strings.ToLower(hint) {
	case "mm58", "58mm", "58":
		return 32
	case "mm80", "80mm", "80":
		return 48
	}
	return 48
}

// PortClass is the transport a spooler port name suggests
type PortClass int

const (
	PortLocal PortClass = iota
	PortUSB
	PortNetwork
)

// ClassifyPort classifies a spooler port name
func ClassifyPort(port string) PortClass {
	upper := strings.ToUpper(port)
	switch {
	case strings.Contains(upper, "USB"):
		return PortUSB
	case strings.Contains(upper, "IP_"), strings.Contains(upper, "TCP"):
		return PortNetwork
	}
	return PortLocal
}

// HostFromPort extracts the host of a standard TCP/IP port name such as
// "IP_192.168.1.50" or "192.168.1.50_1". It returns "" when no host is found.
func HostFromPort(port string) string {
	p := port
	if i := strings.Index(strings.ToUpper(p), "IP_"); i >= 0 {
		p = p[i+3:]
	}
	if i := strings.LastIndex(p, "_"); i > 0 {
		if net.ParseIP(p[:i]) != nil {
			p = p[:i]
		}
	}
	if i := strings.LastIndex(p, ":"); i > 0 && strings.Count(p, ":") == 1 {
		p = p[:i]
	}
	if net.ParseIP(p) != nil {
		return p
	}
	return ""
}
