package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uscite/internal/amqp"
	"uscite/internal/cli"
	"uscite/internal/dispatch"
	apphttp "uscite/internal/http"
	applog "uscite/internal/log"
	"uscite/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	store, closeStore := cli.OpenStore(logger, cfg)
	defer func() { _ = closeStore() }()

	// The link composer doubles as the source of the manual "open message"
	// link on the index page, so keep a typed reference to it.
	var (
		composer dispatch.Composer
		link     *dispatch.LinkComposer
	)
	switch cfg.DeliveryMode {
	case "api":
		composer = dispatch.NewAPIComposer(cfg.SendAPIURL, cfg.SendAPIKey)
		logger.Info("Initialized API delivery", "url", cfg.SendAPIURL)
	default:
		link = dispatch.NewLinkComposer()
		composer = link
		logger.Info("Initialized link delivery")
	}

	dispatcher := dispatch.NewDispatcher(composer, store,
		cfg.RecipientIdentity, cfg.SummaryLabel, logger)

	params := services.Params{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer func() { _ = amqpClient.Close() }()
		params.Publisher = amqpClient
		logger.Info("Mirror queue enabled",
			"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Mirror queue disabled - no AMQP_URL provided")
	}

	session, err := services.NewSession(context.Background(), params)
	if err != nil {
		logger.Error("Failed to start session", applog.FieldError, err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, session, link, logger)
	if err != nil {
		logger.Error("Failed to build server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting uscite server",
		"port", cfg.Port, "backend", cfg.DataBackend, "delivery", cfg.DeliveryMode)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
