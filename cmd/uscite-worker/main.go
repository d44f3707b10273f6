package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"uscite/internal/amqp"
	"uscite/internal/cli"
	applog "uscite/internal/log"
	"uscite/internal/sheets"
	gsheet "uscite/internal/sheets/google"
	mem "uscite/internal/sheets/memory"
	"uscite/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting uscite-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	store, closeStore := cli.OpenStore(logger, cfg)
	defer func() { _ = closeStore() }()

	// The mirror target is Google Sheets when a spreadsheet is configured;
	// otherwise an in-memory sink keeps the queue drained without side
	// effects, which is what local development wants.
	var (
		writer    sheets.MirrorWriter
		deleter   sheets.MirrorDeleter
		summaries sheets.SummaryWriter
	)
	if cfg.GoogleSpreadsheetID != "" {
		gc, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			ExpensesSheet:   cfg.GoogleSheetName,
			SummarySheet:    cfg.GoogleSummarySheet,
			OAuthClientJSON: cfg.GoogleOAuthClientJSON,
			OAuthClientFile: cfg.GoogleOAuthClientFile,
			OAuthTokenJSON:  cfg.GoogleOAuthTokenJSON,
			OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		writer, deleter, summaries = gc, gc, gc
		logger.Info("Google Sheets mirror enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		memStore := mem.New()
		writer, deleter, summaries = memStore, memStore, memStore
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer func() { _ = amqpClient.Close() }()

	mirror := worker.NewMirrorWorker(store, writer, deleter, summaries, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catch up on anything missed while the worker was down before the
	// consumer starts pulling fresh messages.
	if err := mirror.Reconcile(ctx); err != nil {
		logger.Error("Startup reconcile failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeMessages(gctx, mirror.Handlers())
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := mirror.Reconcile(gctx); err != nil {
					logger.Error("Periodic reconcile failed", applog.FieldError, err)
				}
			}
		}
	})

	logger.Info("Worker running",
		"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue,
		"sync_interval", cfg.SyncInterval.String())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
