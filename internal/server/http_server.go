package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates the gateway HTTP server with the specified address and handler.
// Write timeout is left unset since upgraded connections manage their own deadlines.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer starts the gateway and blocks until it stops.
// A closed server is not reported as an error.
func StartServer(server *http.Server) error {
	slog.Info("gateway listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer stops the gateway from accepting new upgrades. Upgraded
// connections are hijacked and are closed by Server.Shutdown instead.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("gateway shutdown error", "error", err)
		return err
	}

	slog.Info("gateway shutdown completed")
	return nil
}
