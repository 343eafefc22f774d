// Command server runs the framechat broadcast server.
//
// Clients connect over TCP and exchange fixed-size frames; every message is
// relayed to all other connected clients as "[Client {id}]: {text}".
// Optionally a WebSocket gateway serves the same chat over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/framechat/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, opts := configure()
	logger := newLogger(opts)
	slog.SetDefault(logger)
	logger.Info("starting framechat server", "listen", cfg.ListenAddress, "frame_size", cfg.FrameSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg, server.WithLogger(logger))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	var gateway *http.Server
	if cfg.GatewayAddress != "" {
		gateway = server.CreateServer(cfg.GatewayAddress, server.SetupRoutes(srv))
		go func() {
			if err := server.StartServer(gateway); err != nil {
				serveErr <- err
			}
		}()
	}

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if !errors.Is(err, server.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			exitCode = 1
		}
	}

	if gateway != nil {
		if err := server.ShutdownServer(gateway, cfg.ShutdownTimeout); err != nil {
			logger.Warn("gateway shutdown incomplete", "error", err)
		}
	}
	if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("server shutdown incomplete", "error", err)
	}
	logger.Info("server stopped")
	return exitCode
}
