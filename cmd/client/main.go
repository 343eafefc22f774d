// Command client is an interactive terminal client for the framechat server.
//
// Lines typed on stdin are sent to the server, and messages from other
// clients are printed as they arrive. Type ":quit" to leave the chat.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/framechat/internal/client"
	"github.com/Tyrowin/framechat/internal/frame"
	"github.com/Tyrowin/framechat/internal/transport"
)

const dialTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "127.0.0.1:6000", "Server TCP address")
	wsURL := flag.String("ws", "", "Connect through the WebSocket gateway at this URL instead of TCP")
	origin := flag.String("origin", "http://localhost:8080", "Origin header sent to the WebSocket gateway")
	frameSize := flag.Int("frame-size", frame.DefaultSize, "Frame size in bytes; must match the server")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	codec, err := frame.NewCodec(*frameSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid frame size: %v\n", err)
		return 2
	}

	var conn transport.FrameConn
	if *wsURL != "" {
		conn, err = transport.DialWebSocket(*wsURL, *origin, codec.Size(), dialTimeout)
	} else {
		conn, err = transport.DialTCP(*addr, codec.Size(), dialTimeout)
	}
	if err != nil {
		var connectErr *transport.ConnectError
		if errors.As(err, &connectErr) {
			fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", connectErr.Address, connectErr.Err)
		} else {
			fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		}
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := client.NewSession(conn, codec, os.Stdin, os.Stdout, logger)
	if err := session.Run(ctx); err != nil && !errors.Is(err, client.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		logger.Error("session ended with error", "error", err)
		return 1
	}
	return 0
}
