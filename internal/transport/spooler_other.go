//go:build !windows

package transport

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Connect checks that lp is installed. Each Write is submitted as one raw
// CUPS job.
func (s *Spooler) Connect(ctx context.Context) (Conn, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	lp, err := exec.LookPath("lp")
	if err != nil {
		return nil, fmt.Errorf("lp not found: %w", ErrUnavailable)
	}
	return &lpConn{ctx: ctx, lp: lp, queue: s.Queue, title: s.DocName}, nil
}

type lpConn struct {
	ctx   context.Context
	lp    string
	queue string
	title string
}

func (c *lpConn) Write(p []byte) (int, error) {
	cmd := exec.CommandContext(c.ctx, c.lp, "-d", c.queue, "-t", c.title, "-o", "raw")
	cmd.Stdin = bytes.NewReader(p)
	if out, err := cmd.CombinedOutput(); err != nil {
		return 0, fmt.Errorf("lp -d %s: %v: %s", c.queue, err, bytes.TrimSpace(out))
	}
	return len(p), nil
}

func (c *lpConn) Close() error { return nil }
