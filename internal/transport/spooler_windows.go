//go:build windows

package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/thereceipt/receipt-dispatcher/internal/winspool"
)

// Connect opens the queue and starts a RAW document and page
func (s *Spooler) Connect(ctx context.Context) (Conn, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	h, err := winspool.Open(s.Queue)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrConnect, s.Queue, err)
	}
	c := &spoolConn{h: h}

	if _, err := winspool.StartRawDoc(h, s.DocName); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: start doc %s: %v", ErrConnect, s.Queue, err)
	}
	c.inDoc = true

	if err := winspool.StartPage(h); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: start page %s: %v", ErrConnect, s.Queue, err)
	}
	c.inPage = true

	return c, nil
}

type spoolConn struct {
	h      winspool.Handle
	inDoc  bool
	inPage bool
}

func (c *spoolConn) Write(p []byte) (int, error) {
	return winspool.Write(c.h, p)
}

// Close ends the page, ends the document and closes the handle. Every step
// runs even when an earlier one fails.
func (c *spoolConn) Close() error {
	var errs []error
	if c.inPage {
		errs = append(errs, winspool.EndPage(c.h))
		c.inPage = false
	}
	if c.inDoc {
		errs = append(errs, winspool.EndDoc(c.h))
		c.inDoc = false
	}
	errs = append(errs, winspool.Close(c.h))
	return errors.Join(errs...)
}
