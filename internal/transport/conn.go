// Package transport adapts byte-stream and WebSocket connections to a common
// frame-oriented connection used by the chat server and client.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// FrameConn carries fixed-size frames over one client connection.
// ReadFrame and WriteFrame may be called concurrently with each other,
// but neither may be called concurrently with itself.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(f []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

// ConnectError reports a failure to establish a transport connection.
type ConnectError struct {
	Network string
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s %s: %v", e.Network, e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// streamConn reads and writes frames over a reliable byte stream.
type streamConn struct {
	net.Conn
	size int
}

// NewStreamConn wraps a stream connection so that every ReadFrame consumes
// exactly size bytes.
func NewStreamConn(conn net.Conn, size int) FrameConn {
	return &streamConn{Conn: conn, size: size}
}

func (c *streamConn) ReadFrame() ([]byte, error) {
	buf := make([]byte, c.size)
	if _, err := io.ReadFull(c.Conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *streamConn) WriteFrame(f []byte) error {
	if len(f) != c.size {
		return fmt.Errorf("transport: frame of %d bytes, want %d", len(f), c.size)
	}
	_, err := c.Conn.Write(f)
	return err
}

// DialTCP connects to a framed chat server over TCP.
func DialTCP(address string, size int, timeout time.Duration) (FrameConn, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, &ConnectError{Network: "tcp", Address: address, Err: err}
	}
	return NewStreamConn(conn, size), nil
}

// IsExpectedCloseError checks if an error is expected during connection closure.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
