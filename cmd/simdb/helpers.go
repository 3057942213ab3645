package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"simdb/internal/config"
	"simdb/internal/logging"
	"simdb/internal/query"
	"simdb/internal/storage"
)

var (
	dbOnce    sync.Once
	sharedDB  *storage.DB
	sharedCfg *config.Config
	dbErr     error
)

// getDB returns the shared database handle, lazily opened on first use.
func getDB(logger *logging.Logger) (*storage.DB, *config.Config, error) {
	dbOnce.Do(func() {
		root, err := os.Getwd()
		if err != nil {
			dbErr = err
			return
		}

		cfg, err := config.LoadConfig(root)
		if err != nil {
			logger.Warn("Failed to load config, using defaults", map[string]interface{}{
				"error": err.Error(),
			})
			cfg = config.DefaultConfig()
		}
		sharedCfg = cfg

		db, err := storage.Open(resolveDatabasePath(root, cfg), logger)
		if err != nil {
			dbErr = fmt.Errorf("failed to open database: %w", err)
			return
		}
		sharedDB = db
	})

	return sharedDB, sharedCfg, dbErr
}

// mustGetDB returns the shared database or exits on error.
func mustGetDB(logger *logging.Logger) (*storage.DB, *config.Config) {
	db, cfg, err := getDB(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return db, cfg
}

// mustGetService returns a query service over the shared database.
func mustGetService(logger *logging.Logger) *query.Service {
	db, _ := mustGetDB(logger)
	return query.NewService(db, logger)
}

// resolveDatabasePath applies the --database flag over the configured path.
// A relative configured path lives under .simdb/ next to the config file.
func resolveDatabasePath(root string, cfg *config.Config) string {
	if databaseFlag != "" {
		return databaseFlag
	}
	if filepath.IsAbs(cfg.DatabasePath) {
		return cfg.DatabasePath
	}
	return filepath.Join(root, ".simdb", cfg.DatabasePath)
}

// newLogger creates a logger honoring the --log-format flag.
func newLogger() *logging.Logger {
	format := logging.HumanFormat
	if logFormatFlag == "json" {
		format = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: format,
		Level:  logging.InfoLevel,
	})
}
