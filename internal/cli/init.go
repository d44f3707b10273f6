// Package cli provides common initialization shared by cmd/uscite and
// cmd/uscite-worker.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"uscite/internal/config"
	applog "uscite/internal/log"
	"uscite/internal/storage"
)

// SetupLogger initializes structured logging with default settings and sets
// it as the process default.
func SetupLogger() *applog.Logger {
	logger := applog.New(applog.DefaultConfig())
	slog.SetDefault(logger.Logger)
	return logger
}

// LoadEnvFile loads the .env file for local development. Errors are ignored
// as the file is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it, exiting the
// process on failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore builds the ledger store on the configured backend. The returned
// cleanup function closes the underlying database when one was opened.
func OpenStore(logger *applog.Logger, cfg *config.Config) (*storage.LedgerStore, func() error) {
	var (
		kv      storage.KV
		cleanup = func() error { return nil }
	)

	switch cfg.DataBackend {
	case "memory":
		kv = storage.NewMemoryKV()
		logger.Info("Initialized memory backend", "backend", cfg.DataBackend)
	default:
		sqliteKV, err := storage.NewSQLiteKV(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite backend",
				applog.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		kv = sqliteKV
		cleanup = sqliteKV.Close
		logger.Info("Initialized SQLite backend",
			"backend", cfg.DataBackend, "path", cfg.SQLiteDBPath)
	}

	store := storage.NewLedgerStore(kv, cfg.LedgerStorageKey, cfg.MarkerStorageKey, logger)
	return store, cleanup
}
