package transport

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// USB writes to the bulk OUT endpoint of a USB printer
type USB struct {
	VID    uint16
	PID    uint16
	Serial string
}

// NewUSB creates a USB transport. An empty serial matches the first device
// with the given ids.
func NewUSB(vid, pid uint16, serial string) *USB {
	return &USB{VID: vid, PID: pid, Serial: serial}
}

// Kind implements Transport
func (u *USB) Kind() string { return KindUSB }

// Target implements Transport
func (u *USB) Target() string {
	if u.Serial != "" {
		return fmt.Sprintf("%04X:%04X/%s", u.VID, u.PID, u.Serial)
	}
	return fmt.Sprintf("%04X:%04X", u.VID, u.PID)
}

// Connect opens the device and claims the first interface with an OUT endpoint
func (u *USB) Connect(ctx context.Context) (conn Conn, err error) {
	if u.VID == 0 && u.PID == 0 {
		return nil, fmt.Errorf("usb device: %w", ErrUnavailable)
	}

	// gousb panics when libusb cannot be initialized
	defer func() {
		if r := recover(); r != nil {
			conn, err = nil, fmt.Errorf("%w: libusb: %v", ErrUnavailable, r)
		}
	}()

	usbCtx := gousb.NewContext()
	dev, err := u.open(usbCtx)
	if err != nil {
		usbCtx.Close()
		return nil, err
	}

	c := &usbConn{ctx: usbCtx, dev: dev}
	if err := c.claim(); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: usb %s: %v", ErrConnect, u.Target(), err)
	}
	return c, nil
}

func (u *USB) open(usbCtx *gousb.Context) (*gousb.Device, error) {
	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == u.VID && uint16(desc.Product) == u.PID
	})
	if len(devices) == 0 {
		if err != nil {
			return nil, fmt.Errorf("%w: usb %s: %v", ErrConnect, u.Target(), err)
		}
		return nil, fmt.Errorf("usb %s not present: %w", u.Target(), ErrUnavailable)
	}

	var picked *gousb.Device
	for _, dev := range devices {
		if picked == nil && u.matchSerial(dev) {
			picked = dev
			continue
		}
		dev.Close()
	}
	if picked == nil {
		return nil, fmt.Errorf("usb %s not present: %w", u.Target(), ErrUnavailable)
	}
	return picked, nil
}

func (u *USB) matchSerial(dev *gousb.Device) bool {
	if u.Serial == "" {
		return true
	}
	s, err := dev.SerialNumber()
	return err == nil && s == u.Serial
}

type usbConn struct {
	ctx      *gousb.Context
	dev      *gousb.Device
	cfg      *gousb.Config
	iface    *gousb.Interface
	done     func()
	endpoint *gousb.OutEndpoint
}

// claim tries the default interface first, with and without kernel driver
// auto-detach, then walks every configuration.
func (c *usbConn) claim() error {
	iface, done, err := c.dev.DefaultInterface()
	if err != nil {
		_ = c.dev.SetAutoDetach(true)
		iface, done, err = c.dev.DefaultInterface()
	}
	if err == nil {
		if ep := outEndpoint(iface); ep != nil {
			c.iface, c.done, c.endpoint = iface, done, ep
			return nil
		}
		done()
	}

	lastErr := err
	for num, cfgDesc := range c.dev.Desc.Configs {
		cfg, err := c.dev.Config(num)
		if err != nil {
			lastErr = fmt.Errorf("config %d: %w", num, err)
			continue
		}
		for _, ifaceDesc := range cfgDesc.Interfaces {
			iface, err := cfg.Interface(ifaceDesc.Number, 0)
			if err != nil {
				lastErr = fmt.Errorf("interface %d: %w", ifaceDesc.Number, err)
				continue
			}
			if ep := outEndpoint(iface); ep != nil {
				c.cfg, c.iface, c.endpoint = cfg, iface, ep
				return nil
			}
			iface.Close()
		}
		cfg.Close()
	}

	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("no OUT endpoint")
}

func outEndpoint(iface *gousb.Interface) *gousb.OutEndpoint {
	for _, desc := range iface.Setting.Endpoints {
		if desc.Direction != gousb.EndpointDirectionOut {
			continue
		}
		if ep, err := iface.OutEndpoint(desc.Number); err == nil {
			return ep
		}
	}
	return nil
}

func (c *usbConn) Write(p []byte) (int, error) {
	return c.endpoint.Write(p)
}

func (c *usbConn) Close() error {
	switch {
	case c.done != nil:
		c.done()
	case c.iface != nil:
		c.iface.Close()
	}
	if c.cfg != nil {
		c.cfg.Close()
	}

	var err error
	if c.dev != nil {
		err = c.dev.Close()
	}
	if c.ctx != nil {
		if cerr := c.ctx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
