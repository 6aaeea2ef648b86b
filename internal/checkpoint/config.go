package checkpoint

import (
	"fmt"
	"os"
	"slices"
)

// Backends supported by New.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendBlob  = "blob"
)

// Config selects and locates the checkpoint store.
type Config struct {
	Backend  string `toml:"backend"`
	Path     string `toml:"path"`
	LockPath string `toml:"lock_path"`
	RedisURL string `toml:"redis_url"`
	Key      string `toml:"key"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend  string
	Path     string
	LockPath string
	RedisURL string
	Key      string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.LockPath != "" {
		c.LockPath = overlay.LockPath
	}
	if overlay.RedisURL != "" {
		c.RedisURL = overlay.RedisURL
	}
	if overlay.Key != "" {
		c.Key = overlay.Key
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.Path == "" {
		c.Path = ".sdgbatch/checkpoint.json"
	}
	if c.LockPath == "" {
		c.LockPath = ".sdgbatch/run.lock"
	}
	if c.Key == "" {
		c.Key = "sdg_bulk_progress"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Backend != "" {
		if v := os.Getenv(env.Backend); v != "" {
			c.Backend = v
		}
	}
	if env.Path != "" {
		if v := os.Getenv(env.Path); v != "" {
			c.Path = v
		}
	}
	if env.LockPath != "" {
		if v := os.Getenv(env.LockPath); v != "" {
			c.LockPath = v
		}
	}
	if env.RedisURL != "" {
		if v := os.Getenv(env.RedisURL); v != "" {
			c.RedisURL = v
		}
	}
	if env.Key != "" {
		if v := os.Getenv(env.Key); v != "" {
			c.Key = v
		}
	}
}

func (c *Config) validate() error {
	if !slices.Contains([]string{BackendFile, BackendRedis, BackendBlob}, c.Backend) {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Backend == BackendRedis && c.RedisURL == "" {
		return fmt.Errorf("redis_url required for redis backend")
	}
	return nil
}
