package main

import (
	"context"
	"fmt"

	"github.com/hairizuan-noorazman/stormbot/browser"
	"github.com/hairizuan-noorazman/stormbot/database"
	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/oracle"
	"github.com/hairizuan-noorazman/stormbot/run"
	"github.com/hairizuan-noorazman/stormbot/storage"
)

// loadConfig reads the dotenv file and then the configuration.
func loadConfig() (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *Config) logger.Logger {
	return logger.NewLogrusLogger(cfg.Log.Level, cfg.Log.Format)
}

// newOracle returns the Disabled oracle when AI is off so every consumer takes its
// fallback without a network round trip.
func newOracle(ctx context.Context, cfg *Config, aiEnabled bool) (oracle.Oracle, error) {
	if !aiEnabled {
		return oracle.Disabled{}, nil
	}
	return oracle.New(ctx, oracle.Config{
		Provider:          cfg.Oracle.Provider,
		BaseURL:           cfg.Oracle.BaseURL,
		APIKey:            cfg.Oracle.APIKey,
		Model:             cfg.Oracle.Model,
		MaxTokens:         cfg.Oracle.MaxTokens,
		Timeout:           cfg.Oracle.Timeout,
		RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
		Burst:             cfg.Oracle.Burst,
		BedrockRegion:     cfg.Oracle.BedrockRegion,
	})
}

func newLauncher(cfg *Config) browser.Launcher {
	return browser.NewChromeLauncher(browser.ChromeConfig{
		Headless:          cfg.Browser.Headless,
		ExecPath:          cfg.Browser.ExecPath,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		IdleTimeout:       cfg.Browser.IdleTimeout,
	})
}

func newStorage(ctx context.Context, cfg *Config) (storage.BlobStorage, error) {
	return storage.New(ctx, storage.Config{
		Type:    cfg.Storage.Type,
		BaseDir: cfg.Storage.BaseDir,
		Bucket:  cfg.Storage.S3Bucket,
		Region:  cfg.Storage.S3Region,
		Prefix:  cfg.Storage.S3Prefix,
	})
}

func databaseConfig(cfg *Config) database.Config {
	return database.Config{
		Driver:       cfg.History.Driver,
		DSN:          cfg.History.DSN,
		Host:         cfg.History.Host,
		Port:         cfg.History.Port,
		User:         cfg.History.User,
		Password:     cfg.History.Password,
		Database:     cfg.History.Database,
		MaxOpenConns: cfg.History.MaxOpenConns,
		MaxIdleConns: cfg.History.MaxIdleConns,
	}
}

// openHistory connects the run history store and applies pending migrations. The
// returned close function is never nil.
func openHistory(cfg *Config, log logger.Logger) (run.Store, func() error, error) {
	db, err := database.Connect(databaseConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := database.RunMigrations(sqlDB, cfg.History.Driver, ""); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return run.NewSQLStore(db, log), sqlDB.Close, nil
}
