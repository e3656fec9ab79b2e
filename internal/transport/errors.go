package transport

import "errors"

var (
	// ErrUnavailable means no device or connection details could be resolved
	ErrUnavailable = errors.New("transport unavailable")
	// ErrConnect wraps connect timeouts and refusals
	ErrConnect = errors.New("connect failed")
	// ErrWrite wraps transport write failures
	ErrWrite = errors.New("write failed")
	// ErrShortWrite is returned when fewer bytes than requested were accepted
	ErrShortWrite = errors.New("short write")
	// ErrClosed is returned when writing to a closed session
	ErrClosed = errors.New("session closed")
)
