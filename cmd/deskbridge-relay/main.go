// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Command deskbridge-relay runs the signaling relay: the WebSocket
// endpoint both browsers connect to, the room lifecycle API, and the
// gated input-injection path on the controlled machine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/deskbridge/deskbridge/directory"
	"github.com/deskbridge/deskbridge/httpapi"
	"github.com/deskbridge/deskbridge/input"
	"github.com/deskbridge/deskbridge/lib/version"
	"github.com/deskbridge/deskbridge/relay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		listen      string
		database    string
		showVersion bool
	)

	pflag.StringVar(&configPath, "config", "", "path to YAML configuration (required)")
	pflag.StringVar(&listen, "listen", "", "override the configured listen address")
	pflag.StringVar(&database, "db", "", "override the configured SQLite database path")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("deskbridge-relay %s\n", version.Info())
		return nil
	}

	if configPath == "" {
		return fmt.Errorf("--config is required")
	}
	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		config.Listen = listen
	}
	if database != "" {
		config.Database = database
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Room store: SQLite when a path is configured, otherwise the
	// in-memory directory (rooms do not survive restart).
	var rooms directory.Directory
	if config.Database != "" {
		store, err := directory.OpenSQLite(directory.SQLiteConfig{
			Path:   config.Database,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		rooms = store
	} else {
		logger.Warn("no database configured, using in-memory room directory")
		rooms = directory.NewMemoryDirectory()
	}

	// Input capability behind its injector, so a slow injection
	// never stalls signaling.
	var executor input.Executor
	switch config.Input.Executor {
	case "xdotool":
		executor = &input.XdotoolExecutor{
			Binary:  config.Input.XdotoolBinary,
			Display: config.Input.Display,
		}
		logger.Info("input executor: xdotool", "display", config.Input.Display)
	default:
		executor = &input.NullExecutor{Logger: logger}
		logger.Info("input executor: null (commands logged, not executed)")
	}
	injector := input.NewInjector(input.InjectorConfig{
		Executor:  executor,
		QueueSize: config.Input.QueueSize,
		Logger:    logger,
	})
	go injector.Run(ctx)

	server := httpapi.NewServer(httpapi.ServerConfig{
		Address:         config.Listen,
		Directory:       rooms,
		Registry:        relay.NewRegistry(logger),
		Input:           injector,
		Authenticator:   httpapi.NewStaticTokenAuthenticator(config.Auth.Tokens),
		AllowedOrigins:  config.AllowedOrigins,
		ShutdownTimeout: time.Duration(config.ShutdownTimeout),
		Logger:          logger,
	})

	logger.Info("deskbridge-relay starting",
		"version", version.Short(),
		"listen", config.Listen,
		"identities", len(config.Auth.Tokens),
	)
	return server.Serve(ctx)
}
