package printer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/gousb"
)

// USBEnumerator lists USB printers through libusb
type USBEnumerator struct {
	// ExtraVendors extends KnownVendors for candidate selection
	ExtraVendors []uint16
}

// Name implements Enumerator
func (e *USBEnumerator) Name() string { return "usb" }

// Scopes implements Enumerator
func (e *USBEnumerator) Scopes() []Scope { return []Scope{ScopeUSB} }

// Enumerate opens every printer-class or known-vendor device to read its strings
func (e *USBEnumerator) Enumerate(ctx context.Context) (candidates []Candidate, err error) {
	// libusb panics when the library is missing on some platforms
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("usb unavailable: %v", r)
		}
	}()

	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return isPrinterClass(desc) || IsReceiptVendor(uint16(desc.Vendor), e.ExtraVendors...)
	})
	// OpenDevices returns the devices it could open alongside the first error
	defer func() {
		for _, dev := range devices {
			dev.Close()
		}
	}()
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	for _, dev := range devices {
		if ctx.Err() != nil {
			return candidates, ctx.Err()
		}
		desc := dev.Desc
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()
		serial, _ := dev.SerialNumber()

		name := strings.TrimSpace(manufacturer + " " + product)
		if name == "" {
			name = fmt.Sprintf("USB %04X:%04X", uint16(desc.Vendor), uint16(desc.Product))
		}

		candidates = append(candidates, Candidate{
			Prefix:      PrefixUSB,
			DisplayName: name,
			DriverName:  manufacturer,
			Connection: Connection{
				Kind:   ConnUSB,
				VID:    uint16(desc.Vendor),
				PID:    uint16(desc.Product),
				Serial: serial,
			},
		})
	}

	return candidates, nil
}

// isPrinterClass checks the device class and every interface alt setting for class 7
func isPrinterClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

func usbPresent(vid, pid uint16) (present bool) {
	defer func() {
		if recover() != nil {
			present = false
		}
	}()

	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	devices, _ := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == vid && uint16(desc.Product) == pid
	})
	for _, dev := range devices {
		dev.Close()
	}
	return len(devices) > 0
}
