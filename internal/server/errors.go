package server

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrHubClosed is returned by hub operations after Close. It is not expected
	// while the server runs since the hub outlives every connection.
	ErrHubClosed = errors.New("server: hub closed")

	// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
	ErrServerClosed = errors.New("server: closed")

	// ErrTooManyConnections is logged when a connection is refused by admission control.
	ErrTooManyConnections = errors.New("server: too many connections")
)

// ReadError reports a failed frame read, including a clean disconnect or an idle timeout.
type ReadError struct {
	Client ClientID
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("client %d: read: %v", e.Client, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the read failed because the client was idle too long.
func (e *ReadError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// WriteError reports a failed frame write to the client.
type WriteError struct {
	Client ClientID
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("client %d: write: %v", e.Client, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
