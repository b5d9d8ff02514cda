// Package main runs the Marksman calculator server: the Telnet calculator and the
// JSON API with its websocket, under one lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/marksman/internal/config"
	"github.com/cory-johannsen/marksman/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (defaults and MARKSMAN_* environment when empty)")
	flag.Parse()

	var (
		cfg config.Config
		err error
	)
	if *configPath == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	app, cleanup, err := initializeApp(cfg, logger)
	if err != nil {
		logger.Fatal("initializing server", zap.Error(err))
	}
	defer cleanup()

	logger.Info("marksman initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Strings("services", app.Lifecycle.Names()),
		zap.Strings("policies", app.Sessions.PolicyNames()),
		zap.Int("presets", len(app.Sessions.Presets())),
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.String("http_addr", cfg.HTTP.Addr()),
	)

	if err := app.Lifecycle.Run(context.Background()); err != nil {
		logger.Error("server error", zap.Error(err))
		cleanup()
		_ = logger.Sync()
		log.Fatalf("server error: %v", err)
	}
}
