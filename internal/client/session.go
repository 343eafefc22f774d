// Package client implements the interactive terminal side of the chat:
// lines typed locally are sent as frames and frames from the server are
// printed as they arrive.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Tyrowin/framechat/internal/frame"
	"github.com/Tyrowin/framechat/internal/transport"
)

// QuitCommand ends the local session after being sent to the server.
const QuitCommand = ":quit"

// ErrServerClosed is returned by Run when the server ends the connection.
var ErrServerClosed = errors.New("client: connection closed by server")

// Session connects one terminal to a chat server.
type Session struct {
	conn   transport.FrameConn
	codec  frame.Codec
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	outMu    sync.Mutex
	quitSent atomic.Bool
}

// NewSession creates a session reading lines from in and printing to out.
func NewSession(conn transport.FrameConn, codec frame.Codec, in io.Reader, out io.Writer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:   conn,
		codec:  codec,
		in:     in,
		out:    out,
		logger: logger,
	}
}

// Run drives the session until the user quits, the input ends, the server
// closes the connection or ctx is cancelled. The connection is closed on return.
// It returns nil when the session ended locally.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()

	received := make(chan error, 1)
	go func() {
		received <- s.receive()
	}()

	sent := make(chan error, 1)
	go func() {
		sent <- s.send(ctx)
	}()

	select {
	case err := <-received:
		if s.quitSent.Load() {
			s.println("Chat session ended by user")
			return nil
		}
		s.println("Server connection closed")
		return err
	case err := <-sent:
		s.println("Chat session ended by user")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) receive() error {
	for {
		f, err := s.conn.ReadFrame()
		if err != nil {
			if transport.IsExpectedCloseError(err) {
				return ErrServerClosed
			}
			return fmt.Errorf("client: read: %w", err)
		}
		s.println(s.codec.Decode(f))
	}
}

func (s *Session) send(ctx context.Context) error {
	s.println("Chat started. Type your messages (or '" + QuitCommand + "' to exit):")

	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		f, err := s.codec.Encode(line)
		if err != nil {
			s.println(fmt.Sprintf("Message not sent: longer than %d bytes", s.codec.Size()))
			s.logger.Debug("message rejected", "error", err)
			continue
		}

		if line == QuitCommand {
			s.quitSent.Store(true)
		}
		if err := s.conn.WriteFrame(f); err != nil {
			return fmt.Errorf("client: send: %w", err)
		}
		if line == QuitCommand {
			return nil
		}
	}
	return scanner.Err()
}

func (s *Session) println(line string) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, _ = fmt.Fprintln(s.out, line)
}
