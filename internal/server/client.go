// Package server runs the per-connection duplex loop: an inbound pump
// publishing client frames to the hub and an outbound pump writing hub
// messages back to the client.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/framechat/internal/frame"
	"github.com/Tyrowin/framechat/internal/transport"
)

// State is the lifecycle stage of a connection handler.
type State int32

const (
	StateActive State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client handles one accepted connection until either direction fails or
// the client sends the quit sentinel.
type Client struct {
	id           ClientID
	session      uuid.UUID
	conn         transport.FrameConn
	addr         string
	hub          *Hub
	sub          *Subscription
	codec        frame.Codec
	idleTimeout  time.Duration
	writeTimeout time.Duration
	rateLimiter  *rateLimiter
	logger       *slog.Logger
	state        atomic.Int32
}

// NewClient creates a handler for conn. The subscription must already be
// registered with hub so that no message published after the accept is missed.
func NewClient(id ClientID, conn transport.FrameConn, hub *Hub, sub *Subscription, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	codec, err := frame.NewCodec(cfg.FrameSize)
	if err != nil {
		codec = frame.Default
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	addr := ""
	if a := conn.RemoteAddr(); a != nil {
		addr = a.String()
	}
	session := uuid.New()

	return &Client{
		id:           id,
		session:      session,
		conn:         conn,
		addr:         addr,
		hub:          hub,
		sub:          sub,
		codec:        codec,
		idleTimeout:  cfg.IdleTimeout,
		writeTimeout: writeTimeout,
		rateLimiter:  newRateLimiter(cfg.RateLimit),
		logger:       logger.With("client", id, "session", session.String(), "addr", addr),
	}
}

// ID returns the identifier assigned at accept time.
func (c *Client) ID() ClientID {
	return c.id
}

// Session returns the log correlation identifier of this connection.
func (c *Client) Session() uuid.UUID {
	return c.session
}

// State returns the current lifecycle stage.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Run announces the client, runs both pumps until the first one stops, then
// tears the connection down and announces the departure. Cancelling ctx
// forces the same teardown.
//
// Run returns nil when the client quit with the sentinel, a *ReadError or
// *WriteError on transport failure, ErrHubClosed, or ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	c.state.Store(int32(StateActive))
	c.announce(joinedText)
	c.logger.Info("client joined")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- c.readPump()
	}()
	go func() {
		defer wg.Done()
		results <- c.writePump(ctx)
	}()

	var reason error
	select {
	case reason = <-results:
	case <-ctx.Done():
		reason = ctx.Err()
	}

	c.state.Store(int32(StateClosing))
	cancel()
	if err := c.conn.Close(); err != nil && !transport.IsExpectedCloseError(err) {
		c.logger.Warn("error closing connection", "error", err)
	}
	c.sub.Close()
	wg.Wait()

	c.announce(leftText)
	c.logDeparture(reason)
	c.state.Store(int32(StateClosed))
	return reason
}

// readPump reads frames until the quit sentinel or a read error.
func (c *Client) readPump() error {
	for {
		if c.idleTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
				return &ReadError{Client: c.id, Err: err}
			}
		}

		f, err := c.conn.ReadFrame()
		if err != nil {
			return &ReadError{Client: c.id, Err: err}
		}

		if c.codec.Lossy(f) {
			c.logger.Warn("frame is not valid UTF-8; replacing invalid bytes")
		}
		text := c.codec.Decode(f)
		if text == QuitSentinel {
			return nil
		}

		if !c.rateLimiter.allow() {
			c.logger.Warn("rate limit exceeded; discarding message")
			continue
		}

		c.logger.Debug("message received", "text", text)
		if _, err := c.hub.Publish(ChatMessage{Origin: c.id, Text: text, OriginAddr: c.addr}); err != nil {
			return err
		}
	}
}

// writePump forwards hub messages from other clients until the
// subscription closes, the context ends or a write fails.
func (c *Client) writePump(ctx context.Context) error {
	for {
		msg, err := c.sub.Recv(ctx)
		if err != nil {
			return err
		}
		if msg.Origin == c.id {
			continue
		}

		f, err := c.codec.Encode(msg.Format())
		if err != nil {
			c.logger.Warn("dropping outbound message", "origin", msg.Origin, "error", err)
			continue
		}

		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return &WriteError{Client: c.id, Err: err}
		}
		if err := c.conn.WriteFrame(f); err != nil {
			return &WriteError{Client: c.id, Err: err}
		}
	}
}

// announce publishes a presence message; failures only get logged.
func (c *Client) announce(text string) {
	if _, err := c.hub.Publish(ChatMessage{Origin: c.id, Text: text, OriginAddr: c.addr}); err != nil {
		c.logger.Warn("failed to announce client", "text", text, "error", err)
	}
}

func (c *Client) logDeparture(reason error) {
	var readErr *ReadError
	var writeErr *WriteError

	switch {
	case reason == nil:
		c.logger.Info("client left", "reason", "client requested quit")
	case errors.As(reason, &readErr) && readErr.Timeout():
		c.logger.Info("client left", "reason", "idle timeout")
	case errors.As(reason, &readErr) && transport.IsExpectedCloseError(readErr.Err):
		c.logger.Info("client left", "reason", "disconnected")
	case errors.As(reason, &readErr):
		c.logger.Error("client left", "reason", "read error", "error", readErr.Err)
	case errors.As(reason, &writeErr):
		c.logger.Error("client left", "reason", "write error", "error", writeErr.Err)
	case errors.Is(reason, context.Canceled):
		c.logger.Info("client left", "reason", "server shutdown")
	default:
		c.logger.Error("client left", "reason", reason)
	}

	if dropped := c.sub.Dropped(); dropped > 0 {
		c.logger.Warn("slow client lost broadcast messages", "dropped", dropped)
	}
}
