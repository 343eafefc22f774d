package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/framechat/internal/frame"
	"github.com/Tyrowin/framechat/internal/testhelpers"
	"github.com/Tyrowin/framechat/internal/transport"
)

// syncBuffer is a bytes.Buffer safe for the session's concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type runningSession struct {
	peer transport.FrameConn
	out  *syncBuffer
	done chan error
}

func startSession(t *testing.T, ctx context.Context, in io.Reader) *runningSession {
	t.Helper()
	local, remote := net.Pipe()
	peer := transport.NewStreamConn(remote, frame.DefaultSize)
	t.Cleanup(func() { _ = peer.Close() })

	out := &syncBuffer{}
	s := NewSession(transport.NewStreamConn(local, frame.DefaultSize), frame.Default, in, out, slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return &runningSession{peer: peer, out: out, done: done}
}

func (rs *runningSession) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-rs.done:
		return err
	case <-time.After(testhelpers.DefaultTimeout):
		t.Fatal("session did not finish")
		return nil
	}
}

func (rs *runningSession) expectOutput(t *testing.T, want string) {
	t.Helper()
	testhelpers.Eventually(t, func() bool { return strings.Contains(rs.out.String(), want) }, "output contains "+want)
}

// TestSessionSendsLinesAndQuits verifies trimming, blank-line skipping and the quit command.
func TestSessionSendsLinesAndQuits(t *testing.T) {
	in := strings.NewReader("hello\n\n   \n  spaced out  \n:quit\nnever sent\n")
	rs := startSession(t, context.Background(), in)

	testhelpers.ExpectText(t, rs.peer, "hello")
	testhelpers.ExpectText(t, rs.peer, "spaced out")
	testhelpers.ExpectText(t, rs.peer, QuitCommand)

	if err := rs.wait(t); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	out := rs.out.String()
	if !strings.Contains(out, "Chat started") {
		t.Errorf("missing start banner in %q", out)
	}
	if !strings.Contains(out, "Chat session ended by user") {
		t.Errorf("missing end message in %q", out)
	}
	if strings.Contains(out, "Server connection closed") {
		t.Errorf("quit was reported as a server close: %q", out)
	}
}

// TestSessionPrintsIncomingFrames verifies decoding and the server-close path.
func TestSessionPrintsIncomingFrames(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()
	rs := startSession(t, context.Background(), in)

	testhelpers.SendText(t, rs.peer, "[Client 1]: hi there")
	rs.expectOutput(t, "[Client 1]: hi there\n")

	_ = rs.peer.Close()
	err := rs.wait(t)
	if !errors.Is(err, ErrServerClosed) {
		t.Fatalf("Run = %v, want ErrServerClosed", err)
	}
	rs.expectOutput(t, "Server connection closed")
}

// TestSessionRejectsOversizedLines keeps the session running after a long line.
func TestSessionRejectsOversizedLines(t *testing.T) {
	in := strings.NewReader(strings.Repeat("x", frame.DefaultSize+1) + "\nshort\n:quit\n")
	rs := startSession(t, context.Background(), in)

	testhelpers.ExpectText(t, rs.peer, "short")
	testhelpers.ExpectText(t, rs.peer, QuitCommand)
	if err := rs.wait(t); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	rs.expectOutput(t, "Message not sent: longer than 32 bytes")
}

// TestSessionEndsOnInputEOF treats closed stdin like a local quit.
func TestSessionEndsOnInputEOF(t *testing.T) {
	rs := startSession(t, context.Background(), strings.NewReader(""))

	if err := rs.wait(t); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	rs.expectOutput(t, "Chat session ended by user")
	testhelpers.ExpectClosed(t, rs.peer)
}

// TestSessionContextCancel stops a session blocked on input.
func TestSessionContextCancel(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	rs := startSession(t, ctx, in)

	cancel()
	if err := rs.wait(t); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	testhelpers.ExpectClosed(t, rs.peer)
}
