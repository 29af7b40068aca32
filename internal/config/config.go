package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rshade/tablesync/internal/batch"
	"github.com/rshade/tablesync/internal/cache"
	"github.com/rshade/tablesync/internal/logging"
	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
	"github.com/rshade/tablesync/internal/table"
)

// Output formats accepted by the list command.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Configuration validation errors.
var (
	ErrInvalidBaseURL      = errors.New("remote base_url must be an absolute http(s) URL")
	ErrInvalidOutputFormat = errors.New("output format must be table, json or yaml")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidLogFormat    = errors.New("log format must be console or json")
	ErrNegativeDuration    = errors.New("durations cannot be negative")
)

// Config is the full tablesync configuration.
type Config struct {
	Remote  RemoteConfig  `yaml:"remote"  json:"remote"`
	Table   TableConfig   `yaml:"table"   json:"table"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Output  OutputConfig  `yaml:"output"  json:"output"`
	Demo    DemoConfig    `yaml:"demo"    json:"demo"`
}

// RemoteConfig describes the list server.
type RemoteConfig struct {
	BaseURL    string        `yaml:"base_url"              json:"base_url"`
	Route      string        `yaml:"route"                 json:"route"`
	DataKey    string        `yaml:"data_key,omitempty"    json:"data_key,omitempty"`
	APIToken   string        `yaml:"api_token,omitempty"   json:"-"`
	APIVersion string        `yaml:"api_version,omitempty" json:"api_version,omitempty"`
	RetryMax   int           `yaml:"retry_max"             json:"retry_max"`
	Timeout    time.Duration `yaml:"timeout"               json:"timeout"`
}

// TableConfig tunes the table controller.
type TableConfig struct {
	PerPage        int            `yaml:"per_page,omitempty"        json:"per_page,omitempty"`
	Columns        []string       `yaml:"columns,omitempty"         json:"columns,omitempty"`
	Sort           string         `yaml:"sort,omitempty"            json:"sort,omitempty"`
	Filters        map[string]any `yaml:"filters,omitempty"         json:"filters,omitempty"`
	DebounceDelay  time.Duration  `yaml:"debounce_delay"            json:"debounce_delay"`
	CacheTTL       time.Duration  `yaml:"cache_ttl"                 json:"cache_ttl"`
	SweepInterval  time.Duration  `yaml:"sweep_interval"            json:"sweep_interval"`
	PollInterval   time.Duration  `yaml:"poll_interval,omitempty"   json:"poll_interval,omitempty"`
	BulkBatchSize  int            `yaml:"bulk_batch_size"           json:"bulk_batch_size"`
	EnablePrefetch bool           `yaml:"enable_prefetch,omitempty" json:"enable_prefetch,omitempty"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"            json:"level"`
	Format string `yaml:"format"           json:"format"`
	File   string `yaml:"file,omitempty"   json:"file,omitempty"`
	Caller bool   `yaml:"caller,omitempty" json:"caller,omitempty"`
}

// OutputConfig sets CLI output defaults.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"`
}

// DemoConfig configures the demo list server.
type DemoConfig struct {
	Addr         string        `yaml:"addr"          json:"addr"`
	Records      int           `yaml:"records"       json:"records"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:  "http://localhost:8080",
			Route:    "admin.products",
			DataKey:  remote.DefaultDataKey,
			RetryMax: remote.DefaultRetryMax,
			Timeout:  remote.DefaultTimeout,
		},
		Table: TableConfig{
			PerPage:       pagination.DefaultPerPage,
			DebounceDelay: table.DefaultDebounceDelay,
			CacheTTL:      cache.DefaultTTL,
			SweepInterval: cache.DefaultSweepInterval,
			BulkBatchSize: batch.DefaultBatchSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		Output: OutputConfig{
			DefaultFormat: FormatTable,
		},
		Demo: DemoConfig{
			Addr:         "127.0.0.1:8080",
			Records:      250,
			PollInterval: 15 * time.Second,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.Remote.BaseURL)
	}
	if strings.TrimSpace(c.Remote.Route) == "" {
		return remote.ErrEmptyRoute
	}
	if c.Remote.APIVersion != "" {
		if _, verr := semver.NewConstraint(c.Remote.APIVersion); verr != nil {
			return fmt.Errorf("invalid remote api_version %q: %w", c.Remote.APIVersion, verr)
		}
	}
	if c.Remote.Timeout < 0 || c.Table.DebounceDelay < 0 || c.Table.CacheTTL < 0 ||
		c.Table.SweepInterval < 0 || c.Table.PollInterval < 0 {
		return ErrNegativeDuration
	}
	if err = pagination.ValidatePerPage(c.Table.PerPage); err != nil {
		return err
	}
	if _, err = pagination.ParseSort(c.Table.Sort); err != nil {
		return err
	}
	if c.Table.BulkBatchSize < batch.MinBatchSize || c.Table.BulkBatchSize > batch.MaxBatchSize {
		return fmt.Errorf("%w: got %d", batch.ErrInvalidBatchSize, c.Table.BulkBatchSize)
	}
	if _, err = zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}
	switch c.Output.DefaultFormat {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutputFormat, c.Output.DefaultFormat)
	}
	return nil
}

// ControllerConfig returns the table controller configuration. An invalid
// table.sort is ignored; Validate reports it.
func (c *Config) ControllerConfig() table.Config {
	filters := make(map[string]any, len(c.Table.Filters))
	for k, v := range c.Table.Filters {
		filters[k] = v
	}
	sort, _ := pagination.ParseSort(c.Table.Sort)
	return table.Config{
		Route:          c.Remote.Route,
		DataKey:        c.Remote.DataKey,
		InitialFilters: filters,
		PerPage:        c.Table.PerPage,
		Columns:        c.Table.Columns,
		InitialSort:    sort,
		Polling:        table.PollingOptions{Interval: c.Table.PollInterval},
		EnablePrefetch: c.Table.EnablePrefetch,
		DebounceDelay:  c.Table.DebounceDelay,
		CacheTTL:       c.Table.CacheTTL,
		SweepInterval:  c.Table.SweepInterval,
		BulkBatchSize:  c.Table.BulkBatchSize,
	}
}

// ClientConfig returns the HTTP fetcher configuration.
func (c *Config) ClientConfig(logger zerolog.Logger) remote.ClientConfig {
	return remote.ClientConfig{
		BaseURL:    c.Remote.BaseURL,
		DataKey:    c.Remote.DataKey,
		APIToken:   c.Remote.APIToken,
		APIVersion: c.Remote.APIVersion,
		RetryMax:   c.Remote.RetryMax,
		Timeout:    c.Remote.Timeout,
		Logger:     logger,
	}
}

// LoggerConfig returns the logging configuration.
func (c *Config) LoggerConfig() logging.Config {
	out := logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: logging.OutputStderr,
		Caller: c.Logging.Caller,
	}
	if c.Logging.File != "" {
		out.Output = logging.OutputFile
		out.File = c.Logging.File
	}
	return out
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Remote.APIToken != "" {
		out.Remote.APIToken = "********"
	}
	return &out
}
