package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"snapseal/internal/config"
	"snapseal/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to ~/.config/snapseal/config.toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("daemon exited", logging.Error(err))
		log.Fatalf("snapseald: %v", err)
	}
	logger.Info("snapseald shut down")
}
