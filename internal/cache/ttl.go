package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TTL configuration constants and defaults.
const (
	// DefaultTTL is how long a cached page stays servable.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is how often expired pages are purged.
	DefaultSweepInterval = time.Minute

	// MinTTL is the minimum accepted TTL.
	MinTTL = time.Second

	// MaxTTL is the maximum accepted TTL.
	MaxTTL = 24 * time.Hour

	// minutesPerHour is used for duration formatting calculations.
	minutesPerHour = 60

	// EnvTTL is the environment variable for overriding the TTL.
	EnvTTL = "TABLESYNC_CACHE_TTL"
)

// ErrInvalidTTL is returned for TTLs outside [MinTTL, MaxTTL].
var ErrInvalidTTL = fmt.Errorf("TTL must be between %s and %s", MinTTL, MaxTTL)

// ParseTTL parses a TTL given as integer seconds ("300") or a duration ("5m").
func ParseTTL(s string) (time.Duration, error) {
	var d time.Duration
	if seconds, err := strconv.Atoi(s); err == nil {
		d = time.Duration(seconds) * time.Second
	} else {
		parsed, parseErr := time.ParseDuration(s)
		if parseErr != nil {
			return 0, fmt.Errorf("invalid TTL format: %w", parseErr)
		}
		d = parsed
	}

	if d < MinTTL || d > MaxTTL {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidTTL, d)
	}
	return d, nil
}

// TTLFromEnv returns the TTL from EnvTTL, or fallback when unset or invalid.
func TTLFromEnv(fallback time.Duration) time.Duration {
	envVal := os.Getenv(EnvTTL)
	if envVal == "" {
		return fallback
	}
	d, err := ParseTTL(envVal)
	if err != nil {
		return fallback
	}
	return d
}

// FormatDuration formats a duration compactly: "45s", "5m", "1h30m".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % minutesPerHour
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
