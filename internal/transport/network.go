package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Network writes raw bytes to a TCP port, usually 9100
type Network struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// NewNetwork creates a network transport. A zero timeout uses PrintTimeout.
func NewNetwork(host string, port int, timeout time.Duration) *Network {
	if timeout <= 0 {
		timeout = PrintTimeout
	}
	return &Network{Host: host, Port: port, Timeout: timeout}
}

// Kind implements Transport
func (n *Network) Kind() string { return KindNetwork }

// Target implements Transport
func (n *Network) Target() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// Connect dials the printer within the configured timeout
func (n *Network) Connect(ctx context.Context) (Conn, error) {
	if n.Host == "" || n.Port <= 0 || n.Port > 65535 {
		return nil, fmt.Errorf("network printer %q: %w", n.Target(), ErrUnavailable)
	}

	conn, err := dial(ctx, n.Target(), n.Timeout)
	if err != nil {
		return nil, err
	}
	return &netConn{conn: conn, timeout: n.Timeout}, nil
}

// Probe connects to addr and closes immediately
func Probe(ctx context.Context, addr string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = ProbeTimeout
	}
	conn, err := dial(ctx, addr, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

func dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, addr, err)
	}
	return conn, nil
}

type netConn struct {
	conn    net.Conn
	timeout time.Duration
}

func (c *netConn) Write(p []byte) (int, error) {
	// A stalled printer must not block the job forever
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.conn.Write(p)
}

func (c *netConn) Close() error {
	return c.conn.Close()
}
