package batch

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds batch pacing and checkpoint cadence.
type Config struct {
	Delay           string `toml:"delay"`
	CheckpointEvery int    `toml:"checkpoint_every"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Delay           string
	CheckpointEvery string
}

// DelayDuration returns Delay as a time.Duration.
func (c *Config) DelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.Delay)
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
	if overlay.Delay != "" {
		c.Delay = overlay.Delay
	}
	if overlay.CheckpointEvery != 0 {
		c.CheckpointEvery = overlay.CheckpointEvery
	}
}

func (c *Config) loadDefaults() {
	if c.Delay == "" {
		c.Delay = "400ms"
	}
	if c.CheckpointEvery == 0 {
		c.CheckpointEvery = 25
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Delay != "" {
		if v := os.Getenv(env.Delay); v != "" {
			c.Delay = v
		}
	}
	if env.CheckpointEvery != "" {
		if v := os.Getenv(env.CheckpointEvery); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.CheckpointEvery = n
			}
		}
	}
}

func (c *Config) validate() error {
	d, err := time.ParseDuration(c.Delay)
	if err != nil {
		return fmt.Errorf("invalid delay: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	if c.CheckpointEvery < 1 {
		return fmt.Errorf("checkpoint_every must be positive")
	}
	return nil
}
