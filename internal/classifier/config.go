package classifier

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the classifier endpoint and call policy.
type Config struct {
	Endpoint        string `toml:"endpoint"`
	PredictPath     string `toml:"predict_path"`
	HealthPath      string `toml:"health_path"`
	Token           string `toml:"token"`
	Timeout         string `toml:"timeout"`
	BreakerFailures uint32 `toml:"breaker_failures"`
	BreakerCooldown string `toml:"breaker_cooldown"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Endpoint        string
	PredictPath     string
	HealthPath      string
	Token           string
	Timeout         string
	BreakerFailures string
	BreakerCooldown string
}

// Configured reports whether an endpoint has been provided.
func (c *Config) Configured() bool {
	return c.Endpoint != ""
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// BreakerCooldownDuration returns BreakerCooldown as a time.Duration.
func (c *Config) BreakerCooldownDuration() time.Duration {
	d, _ := time.ParseDuration(c.BreakerCooldown)
	return d
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
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.PredictPath != "" {
		c.PredictPath = overlay.PredictPath
	}
	if overlay.HealthPath != "" {
		c.HealthPath = overlay.HealthPath
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.BreakerFailures != 0 {
		c.BreakerFailures = overlay.BreakerFailures
	}
	if overlay.BreakerCooldown != "" {
		c.BreakerCooldown = overlay.BreakerCooldown
	}
}

func (c *Config) loadDefaults() {
	if c.PredictPath == "" {
		c.PredictPath = "/run/predict"
	}
	if c.HealthPath == "" {
		c.HealthPath = "/config"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown == "" {
		c.BreakerCooldown = "30s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Endpoint != "" {
		if v := os.Getenv(env.Endpoint); v != "" {
			c.Endpoint = v
		}
	}
	if env.PredictPath != "" {
		if v := os.Getenv(env.PredictPath); v != "" {
			c.PredictPath = v
		}
	}
	if env.HealthPath != "" {
		if v := os.Getenv(env.HealthPath); v != "" {
			c.HealthPath = v
		}
	}
	if env.Token != "" {
		if v := os.Getenv(env.Token); v != "" {
			c.Token = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
	if env.BreakerFailures != "" {
		if v := os.Getenv(env.BreakerFailures); v != "" {
			if n, err := strconv.ParseUint(v, 10, 32); err == nil && n > 0 {
				c.BreakerFailures = uint32(n)
			}
		}
	}
	if env.BreakerCooldown != "" {
		if v := os.Getenv(env.BreakerCooldown); v != "" {
			c.BreakerCooldown = v
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.BreakerCooldown); err != nil {
		return fmt.Errorf("invalid breaker_cooldown: %w", err)
	}
	return nil
}
