package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Log     LogConfig
	Oracle  OracleConfig
	Browser BrowserConfig
	Storage StorageConfig
	History HistoryConfig
	Agent   AgentConfig
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// OracleConfig holds AI oracle configuration.
type OracleConfig struct {
	Provider          string // "openai", "anthropic" or "bedrock"
	BaseURL           string
	APIKey            string
	Model             string
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BedrockRegion     string
}

// BrowserConfig holds headless browser configuration.
type BrowserConfig struct {
	Headless          bool
	ExecPath          string
	NavigationTimeout time.Duration
	IdleTimeout       time.Duration
}

// StorageConfig holds report storage configuration.
type StorageConfig struct {
	Type     string // "local" or "s3"
	BaseDir  string
	S3Bucket string
	S3Region string
	S3Prefix string
}

// HistoryConfig holds the optional run history database configuration.
type HistoryConfig struct {
	Enabled      bool
	Driver       string // "sqlite" or "mysql"
	DSN          string
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
}

// AgentConfig holds agent pacing configuration.
type AgentConfig struct {
	ConfidenceThreshold float64
	DelayScale          float64
	EventBuffer         int
}

// loadEnvFile loads dotenv variables without overriding ones already set. A missing
// file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("stormbot")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("oracle.provider", "openai")
	v.SetDefault("oracle.base_url", "https://api.blackbox.ai")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.model", "blackboxai/openai/gpt-4")
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("oracle.timeout", "30s")
	v.SetDefault("oracle.requests_per_second", 2)
	v.SetDefault("oracle.burst", 4)
	v.SetDefault("oracle.bedrock_region", "us-east-1")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.idle_timeout", "10s")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_dir", "./stormbot-reports")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_prefix", "")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", "stormbot.db")
	v.SetDefault("history.host", "localhost")
	v.SetDefault("history.port", 3306)
	v.SetDefault("history.user", "root")
	v.SetDefault("history.password", "")
	v.SetDefault("history.database", "stormbot")
	v.SetDefault("history.max_open_conns", 5)
	v.SetDefault("history.max_idle_conns", 2)

	v.SetDefault("agent.confidence_threshold", 0.6)
	v.SetDefault("agent.delay_scale", 1.0)
	v.SetDefault("agent.event_buffer", 1024)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults
	}

	var config Config

	config.Log.Level = v.GetString("log.level")
	config.Log.Format = v.GetString("log.format")

	config.Oracle.Provider = v.GetString("oracle.provider")
	config.Oracle.BaseURL = v.GetString("oracle.base_url")
	config.Oracle.APIKey = v.GetString("oracle.api_key")
	config.Oracle.Model = v.GetString("oracle.model")
	config.Oracle.MaxTokens = v.GetInt("oracle.max_tokens")
	config.Oracle.Timeout = v.GetDuration("oracle.timeout")
	config.Oracle.RequestsPerSecond = v.GetFloat64("oracle.requests_per_second")
	config.Oracle.Burst = v.GetInt("oracle.burst")
	config.Oracle.BedrockRegion = v.GetString("oracle.bedrock_region")

	config.Browser.Headless = v.GetBool("browser.headless")
	config.Browser.ExecPath = v.GetString("browser.exec_path")
	config.Browser.NavigationTimeout = v.GetDuration("browser.navigation_timeout")
	config.Browser.IdleTimeout = v.GetDuration("browser.idle_timeout")

	config.Storage.Type = v.GetString("storage.type")
	config.Storage.BaseDir = v.GetString("storage.base_dir")
	config.Storage.S3Bucket = v.GetString("storage.s3_bucket")
	config.Storage.S3Region = v.GetString("storage.s3_region")
	config.Storage.S3Prefix = v.GetString("storage.s3_prefix")

	config.History.Enabled = v.GetBool("history.enabled")
	config.History.Driver = v.GetString("history.driver")
	config.History.DSN = v.GetString("history.dsn")
	config.History.Host = v.GetString("history.host")
	config.History.Port = v.GetInt("history.port")
	config.History.User = v.GetString("history.user")
	config.History.Password = v.GetString("history.password")
	config.History.Database = v.GetString("history.database")
	config.History.MaxOpenConns = v.GetInt("history.max_open_conns")
	config.History.MaxIdleConns = v.GetInt("history.max_idle_conns")

	config.Agent.ConfidenceThreshold = v.GetFloat64("agent.confidence_threshold")
	config.Agent.DelayScale = v.GetFloat64("agent.delay_scale")
	config.Agent.EventBuffer = v.GetInt("agent.event_buffer")

	return &config, nil
}
