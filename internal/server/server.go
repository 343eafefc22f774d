// Package server accepts framed chat connections and dispatches one
// connection handler per client.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/framechat/internal/transport"
)

// Server owns the hub, the identifier sequence and every running handler.
// Several listeners and the WebSocket gateway may feed the same Server.
type Server struct {
	cfg     Config
	hub     *Hub
	logger  *slog.Logger
	origins *originPolicy

	nextID atomic.Uint64
	active atomic.Int64
	slots  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	closed    bool
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger for server and connection events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server from cfg; nil means defaults.
func NewServer(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := sanitizeConfig(*cfg)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       sanitized,
		hub:       NewHub(sanitized.QueueSize),
		logger:    slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[net.Listener]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if sanitized.MaxConnections > 0 {
		s.slots = make(chan struct{}, sanitized.MaxConnections)
	}
	s.origins = newOriginPolicy(sanitized.AllowedOrigins, s.logger)
	return s
}

// Hub returns the broadcast hub shared by all handlers.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Config returns the sanitized configuration in effect.
func (s *Server) Config() Config {
	return s.cfg
}

// ActiveClients returns the number of handlers that have not yet finished.
func (s *Server) ActiveClients() int {
	return int(s.active.Load())
}

// ListenAndServe binds the configured TCP address and serves it.
// A bind failure is returned immediately.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown, spawning a handler for
// each. It does not wait for handlers. Accept errors such as EMFILE are
// retried with backoff; only a listener closed outside Shutdown ends Serve
// with an error. Serve always closes ln.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	s.logger.Info("server listening", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			backoff = nextBackoff(backoff)
			s.logger.Warn("accept error; retrying", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return ErrServerClosed
			}
			continue
		}
		backoff = 0

		s.ServeConn(transport.NewStreamConn(conn, s.cfg.FrameSize))
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

// ServeConn admits conn, assigns the next ClientID, subscribes it to the hub
// and runs its handler in a new goroutine. Connections refused by admission
// control or arriving during shutdown are closed without consuming an ID.
func (s *Server) ServeConn(conn transport.FrameConn) {
	if !s.acquireSlot() {
		s.logger.Warn("refusing connection", "addr", remoteAddr(conn), "error", ErrTooManyConnections)
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.releaseSlot()
		_ = conn.Close()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	sub, err := s.hub.Subscribe()
	if err != nil {
		s.logger.Error("cannot subscribe connection", "addr", remoteAddr(conn), "error", err)
		_ = conn.Close()
		s.releaseSlot()
		s.wg.Done()
		return
	}

	id := ClientID(s.nextID.Add(1) - 1)
	client := NewClient(id, conn, s.hub, sub, s.cfg, s.logger)
	s.active.Add(1)
	s.logger.Info("new client connection", "client", id, "addr", remoteAddr(conn))

	go func() {
		defer func() {
			s.active.Add(-1)
			s.releaseSlot()
			s.wg.Done()
		}()
		_ = client.Run(s.ctx)
	}()
}

func (s *Server) acquireSlot() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) releaseSlot() {
	if s.slots != nil {
		<-s.slots
	}
}

// Shutdown stops accepting, cancels every running handler and waits up to
// timeout for them to finish before closing the hub. In-flight handlers are
// not drained: their transports are closed immediately.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for ln := range s.listeners {
		if err := ln.Close(); err != nil && !transport.IsExpectedCloseError(err) {
			s.logger.Warn("error closing listener", "error", err)
		}
	}
	s.mu.Unlock()

	s.logger.Info("shutting down", "clients", s.ActiveClients())
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.logger.Info("all clients closed")
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout reached, some handlers may still be running", "clients", s.ActiveClients())
		err = context.DeadlineExceeded
	}

	s.hub.Close()
	return err
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	delete(s.listeners, ln)
	s.mu.Unlock()
	_ = ln.Close()
}

func remoteAddr(conn transport.FrameConn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
