package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// SessionState tracks one session through its lifetime
type SessionState int

const (
	SessionNew SessionState = iota
	SessionOpen
	SessionFailed
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionNew:
		return "new"
	case SessionOpen:
		return "open"
	case SessionFailed:
		return "failed"
	case SessionClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the lifetime of one connection for one print attempt. Close is
// idempotent and is a no-op after a failed Open.
type Session struct {
	transport Transport
	conn      Conn
	state     SessionState
	written   int
	mu        sync.Mutex
}

// NewSession creates a session for t. Nothing is opened until Open.
func NewSession(t Transport) *Session {
	return &Session{transport: t}
}

// Transport returns the session's transport
func (s *Session) Transport() Transport { return s.transport }

// State returns the current state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Written returns the bytes accepted so far
func (s *Session) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Open connects the transport
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionNew {
		return fmt.Errorf("session is %s", s.state)
	}
	if s.transport == nil {
		s.state = SessionFailed
		return fmt.Errorf("no transport: %w", ErrUnavailable)
	}

	conn, err := s.transport.Connect(ctx)
	if err != nil {
		s.state = SessionFailed
		if !errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrConnect) {
			err = fmt.Errorf("%w: %v", ErrConnect, err)
		}
		return err
	}
	s.conn = conn
	s.state = SessionOpen
	return nil
}

// Write sends p in one call. A count that differs from len(p) is an error.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionOpen {
		return 0, ErrClosed
	}

	n, err := s.conn.Write(p)
	s.written += n
	if err != nil {
		return n, fmt.Errorf("%w: %s: %v", ErrWrite, s.transport.Target(), err)
	}
	if n != len(p) {
		return n, fmt.Errorf("%w: %d of %d bytes to %s", ErrShortWrite, n, len(p), s.transport.Target())
	}
	return n, nil
}

// Close releases the connection. Calling it more than once, or after a
// failed Open, does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionOpen {
		if s.state == SessionNew {
			s.state = SessionClosed
		}
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	s.state = SessionClosed
	return err
}
