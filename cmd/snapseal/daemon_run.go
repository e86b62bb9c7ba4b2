package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"snapseal/internal/auth"
	"snapseal/internal/blobstore"
	"snapseal/internal/capture"
	"snapseal/internal/daemon"
	"snapseal/internal/events"
	"snapseal/internal/ipc"
	"snapseal/internal/kvstore"
	"snapseal/internal/logging"
	"snapseal/internal/registrar"
	"snapseal/internal/uploadqueue"
	"snapseal/internal/watcher"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the snapseal daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	records, err := kvstore.Open(cfg.RecordsDBPath())
	if err != nil {
		return fmt.Errorf("open records store: %w", err)
	}
	blobs, err := blobstore.Open(cfg.AssetsDBPath())
	if err != nil {
		records.Close()
		return fmt.Errorf("open assets store: %w", err)
	}

	hub := events.NewHub()
	defer hub.Close()

	client := registrar.NewHTTPClient(
		cfg.Registry.BaseURL,
		time.Duration(cfg.Registry.RequestTimeout)*time.Second,
		nil,
		func(ctx context.Context) (string, error) {
			creds, err := auth.Load(ctx, records)
			if err != nil {
				return "", err
			}
			return creds.Token, nil
		},
	)

	engine := uploadqueue.New(records, blobs, client, hub, logger,
		uploadqueue.WithProgressInterval(time.Duration(cfg.Queue.ProgressTickMillis)*time.Millisecond),
		uploadqueue.WithRecorderSource(func(ctx context.Context) (string, error) {
			creds, err := auth.Load(ctx, records)
			if err != nil {
				return "", err
			}
			if creds.RecorderID != "" {
				return creds.RecorderID, nil
			}
			return "snapseal", nil
		}),
	)

	orch := capture.NewFromConfig(cfg, blobs, records, engine, hub, logger)

	var inbox *watcher.Watcher
	if cfg.Watcher.Enabled {
		inbox = watcher.New(cfg.Paths.InboxDir, orch, logger,
			time.Duration(cfg.Watcher.SettleMillis)*time.Millisecond)
	}

	d, err := daemon.New(cfg, records, blobs, engine, orch, inbox, hub, logger)
	if err != nil {
		records.Close()
		blobs.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	defer d.Stop()

	server, err := ipc.NewServer(cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start control socket: %w", err)
	}
	defer server.Close()

	logger.Info("snapseal daemon ready", logging.String("socket", cfg.SocketPath()))
	return server.Serve(signalCtx)
}
