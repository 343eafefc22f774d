// Package testhelpers provides common utilities shared by the framechat tests.
//
// It dials framed TCP and WebSocket clients, sends and awaits chat text with
// timeouts, and polls conditions, so that server and client tests do not
// repeat connection plumbing.
package testhelpers

import (
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/framechat/internal/frame"
	"github.com/Tyrowin/framechat/internal/transport"
)

// DefaultTimeout bounds every wait in the helpers.
const DefaultTimeout = 2 * time.Second

// TestOrigin is an origin accepted by the default gateway configuration.
const TestOrigin = "http://localhost:8080"

// Listen opens a loopback TCP listener on an ephemeral port.
func Listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	return ln
}

// DialTCP connects a framed client and closes it when the test ends.
func DialTCP(t *testing.T, addr string) transport.FrameConn {
	t.Helper()
	conn, err := transport.DialTCP(addr, frame.DefaultSize, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DialWebSocket connects a framed client through the gateway at url.
func DialWebSocket(t *testing.T, url string) transport.FrameConn {
	t.Helper()
	conn, err := transport.DialWebSocket(url, TestOrigin, frame.DefaultSize, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// WebSocketURL converts an httptest server URL into its /ws endpoint.
func WebSocketURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// SendText encodes text into a frame and writes it.
func SendText(t *testing.T, conn transport.FrameConn, text string) {
	t.Helper()
	f, err := frame.Encode(text)
	if err != nil {
		t.Fatalf("Failed to encode %q: %v", text, err)
	}
	if err := conn.WriteFrame(f); err != nil {
		t.Fatalf("Failed to send %q: %v", text, err)
	}
}

// ReceiveText reads one frame within timeout and decodes it.
func ReceiveText(conn transport.FrameConn, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	defer conn.SetReadDeadline(time.Time{})

	f, err := conn.ReadFrame()
	if err != nil {
		return "", err
	}
	return frame.Decode(f), nil
}

// ExpectText fails the test unless the next frame decodes to want.
func ExpectText(t *testing.T, conn transport.FrameConn, want string) {
	t.Helper()
	got, err := ReceiveText(conn, DefaultTimeout)
	if err != nil {
		t.Fatalf("Expected %q, got error: %v", want, err)
	}
	if got != want {
		t.Fatalf("Expected %q, got %q", want, got)
	}
}

// ExpectNoMessage fails the test if a frame arrives within d.
func ExpectNoMessage(t *testing.T, conn transport.FrameConn, d time.Duration) {
	t.Helper()
	got, err := ReceiveText(conn, d)
	if err == nil {
		t.Fatalf("Expected no message, got %q", got)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) && !isTimeout(err) {
		t.Fatalf("Expected read timeout, got error: %v", err)
	}
}

// ExpectClosed fails the test unless the connection reports end of stream within the timeout.
func ExpectClosed(t *testing.T, conn transport.FrameConn) {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		got, err := ReceiveText(conn, time.Until(deadline))
		if err == nil {
			t.Logf("Draining %q while waiting for close", got)
			continue
		}
		if isTimeout(err) {
			break
		}
		return
	}
	t.Fatal("Expected connection to be closed")
}

// Eventually polls cond until it holds or the timeout expires.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %s: %s", DefaultTimeout, msg)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
