package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rshade/tablesync/internal/cache"
)

// Environment variables read by ApplyEnv.
const (
	EnvHome         = "TABLESYNC_HOME"
	EnvProjectDir   = "TABLESYNC_PROJECT_DIR"
	EnvBaseURL      = "TABLESYNC_BASE_URL"
	EnvRoute        = "TABLESYNC_ROUTE"
	EnvAPIToken     = "TABLESYNC_API_TOKEN"
	EnvLogLevel     = "TABLESYNC_LOG_LEVEL"
	EnvPollInterval = "TABLESYNC_POLL_INTERVAL"
	EnvCacheTTL     = cache.EnvTTL
)

// ApplyEnv overrides configuration values from TABLESYNC_* variables.
// Malformed durations are reported and leave the value unchanged.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv(EnvRoute); v != "" {
		c.Remote.Route = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.Remote.APIToken = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPollInterval, err)
		}
		c.Table.PollInterval = d
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		d, err := cache.ParseTTL(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCacheTTL, err)
		}
		c.Table.CacheTTL = d
	}
	return nil
}

// parseDuration accepts a Go duration ("15s") or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return 0, ErrNegativeDuration
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, ErrNegativeDuration
	}
	return d, nil
}
