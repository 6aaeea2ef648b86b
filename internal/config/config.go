// Package config loads the layered TOML configuration shared by the server
// and the batch CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/sdgindex/internal/batch"
	"github.com/JaimeStill/sdgindex/internal/checkpoint"
	"github.com/JaimeStill/sdgindex/internal/classifier"
	"github.com/JaimeStill/sdgindex/pkg/database"
	"github.com/JaimeStill/sdgindex/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvSDGEnv             = "SDG_ENV"
	EnvSDGShutdownTimeout = "SDG_SHUTDOWN_TIMEOUT"
	EnvSDGVersion         = "SDG_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "SDG_DB_HOST",
	Port:            "SDG_DB_PORT",
	Name:            "SDG_DB_NAME",
	User:            "SDG_DB_USER",
	Password:        "SDG_DB_PASSWORD",
	SSLMode:         "SDG_DB_SSL_MODE",
	MaxOpenConns:    "SDG_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "SDG_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "SDG_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "SDG_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "SDG_STORAGE_CONTAINER_NAME",
	ConnectionString: "SDG_STORAGE_CONNECTION_STRING",
}

var classifierEnv = &classifier.Env{
	Endpoint:        "SDG_CLASSIFIER_ENDPOINT",
	PredictPath:     "SDG_CLASSIFIER_PREDICT_PATH",
	HealthPath:      "SDG_CLASSIFIER_HEALTH_PATH",
	Token:           "SDG_CLASSIFIER_TOKEN",
	Timeout:         "SDG_CLASSIFIER_TIMEOUT",
	BreakerFailures: "SDG_CLASSIFIER_BREAKER_FAILURES",
	BreakerCooldown: "SDG_CLASSIFIER_BREAKER_COOLDOWN",
}

var batchEnv = &batch.Env{
	Delay:           "SDG_BATCH_DELAY",
	CheckpointEvery: "SDG_BATCH_CHECKPOINT_EVERY",
}

var checkpointEnv = &checkpoint.Env{
	Backend:  "SDG_CHECKPOINT_BACKEND",
	Path:     "SDG_CHECKPOINT_PATH",
	LockPath: "SDG_CHECKPOINT_LOCK_PATH",
	RedisURL: "SDG_CHECKPOINT_REDIS_URL",
	Key:      "SDG_CHECKPOINT_KEY",
}

// Config is the root configuration for the SDG index service.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	API             APIConfig         `toml:"api"`
	Classifier      classifier.Config `toml:"classifier"`
	Batch           batch.Config      `toml:"batch"`
	Checkpoint      checkpoint.Config `toml:"checkpoint"`
	Export          ExportConfig      `toml:"export"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the SDG_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvSDGEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Classifier.Merge(&overlay.Classifier)
	c.Batch.Merge(&overlay.Batch)
	c.Checkpoint.Merge(&overlay.Checkpoint)
	c.Export.Merge(&overlay.Export)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Classifier.Finalize(classifierEnv); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if err := c.Batch.Finalize(batchEnv); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if err := c.Checkpoint.Finalize(checkpointEnv); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	c.Export.Finalize()
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvSDGShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvSDGVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvSDGEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
