package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Tyrowin/framechat/internal/server"
)

// Options holds settings that only matter to the binary.
type Options struct {
	LogLevel  string
	LogFormat string
}

// BinaryName is the name of the running executable.
var BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

// configure layers command line flags over the environment configuration.
func configure() (*server.Config, Options) {
	cfg := server.NewConfigFromEnv()
	opts := Options{
		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "text"),
	}

	out := flag.CommandLine.Output()
	printUsage := func() {
		fmt.Fprintf(out, "Launch the framechat broadcast server\n\n\t%s [options]\nOptions:\n\n", BinaryName)
		flag.PrintDefaults()
		fmt.Fprint(out, "\n")
	}
	printError := func(msg string) {
		fmt.Fprintf(out, "%s error:\n\n\t%s\n", BinaryName, msg)
	}

	help := false
	idleSeconds := int(cfg.IdleTimeout / time.Second)
	flag.BoolVar(&help, "help", false, "Print usage help")
	flag.StringVar(&cfg.ListenAddress, "listen", cfg.ListenAddress, "TCP listen address")
	flag.StringVar(&cfg.GatewayAddress, "gateway", cfg.GatewayAddress, "WebSocket gateway address; empty disables the gateway")
	flag.IntVar(&cfg.FrameSize, "frame-size", cfg.FrameSize, "Frame size in bytes")
	flag.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Per-client delivery queue capacity")
	flag.IntVar(&cfg.MaxConnections, "max-conns", cfg.MaxConnections, "Maximum concurrent clients; 0 is unlimited")
	flag.IntVar(&idleSeconds, "idle-timeout", idleSeconds, "Idle seconds before a client is disconnected; 0 disables")
	flag.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: debug, info, warn or error")
	flag.StringVar(&opts.LogFormat, "log-format", opts.LogFormat, "Log format: text or json")

	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}

	if cfg.FrameSize < 1 {
		printError("frame-size value should be greater 0")
		os.Exit(1)
	}
	if cfg.QueueSize < 1 {
		printError("queue-size value should be greater 0")
		os.Exit(1)
	}
	if idleSeconds < 0 {
		printError("idle-timeout value should be greater or equal 0")
		os.Exit(1)
	}
	cfg.IdleTimeout = time.Duration(idleSeconds) * time.Second

	if _, err := parseLevel(opts.LogLevel); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	if opts.LogFormat != "text" && opts.LogFormat != "json" {
		printError("log-format value should be text or json")
		os.Exit(1)
	}

	return cfg, opts
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log-level value %q is not a level", s)
	}
	return level, nil
}

// newLogger builds the process logger writing to stderr.
func newLogger(opts Options) *slog.Logger {
	level, _ := parseLevel(opts.LogLevel)
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}
