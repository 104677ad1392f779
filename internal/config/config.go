// Package config defines run configuration structures and loading hooks.
//
// Conventions:
// - Provide New() defaults layered under file and env values.
// - External errors must be wrapped via this package's error helpers.
package config

import "time"

// Config contains one import run's configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// FREDAPIKey authenticates against the FRED-style provider.
	// Required when the fred source is selected.
	FREDAPIKey string `koanf:"fred_api_key"`

	// SDMXBaseURL and SDMXAPIKey configure the statistics agency client.
	SDMXBaseURL string `koanf:"sdmx_base_url"`
	SDMXAPIKey  string `koanf:"sdmx_api_key"`

	// CalendarPrimaryURL and CalendarSecondaryURL are the scraped
	// calendar pages; the secondary is the fallback source.
	CalendarPrimaryURL   string `koanf:"calendar_primary_url"`
	CalendarSecondaryURL string `koanf:"calendar_secondary_url"`

	// PostgresDSN selects the Postgres record store; empty runs against
	// the in-memory store.
	PostgresDSN string `koanf:"postgres_dsn"`

	// StartYear bounds how far back history imports reach.
	StartYear int `koanf:"start_year"`

	// SeriesAllowList restricts the catalog to these series ids; empty
	// imports the whole catalog.
	SeriesAllowList []string `koanf:"series_allow_list"`

	// Validation option overrides.
	AllowMissing   bool    `koanf:"allow_missing"`
	MinValue       float64 `koanf:"min_value"`
	MaxValue       float64 `koanf:"max_value"`
	OutlierStdDevs float64 `koanf:"outlier_std_devs"`

	// Reconciler sizing.
	LookupChunkSize   int `koanf:"lookup_chunk_size"`
	InsertBatchSize   int `koanf:"insert_batch_size"`
	UpdateConcurrency int `koanf:"update_concurrency"`

	// Throttle overrides.
	FREDMinIntervalMS  int `koanf:"fred_min_interval_ms"`
	SDMXWindowRequests int `koanf:"sdmx_window_requests"`
	SDMXWindowSeconds  int `koanf:"sdmx_window_seconds"`

	// ScheduleChangeCap bounds how many schedule changes the summary
	// lists for display; the count is never capped.
	ScheduleChangeCap int `koanf:"schedule_change_cap"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		StartYear:          2000,
		MinValue:           -1e12,
		MaxValue:           1e12,
		LookupChunkSize:    100,
		InsertBatchSize:    500,
		UpdateConcurrency:  8,
		FREDMinIntervalMS:  600,
		SDMXWindowRequests: 20,
		SDMXWindowSeconds:  60,
		ScheduleChangeCap:  50,
	}
}

// SDMXWindow returns the sliding-window duration.
func (c *Config) SDMXWindow() time.Duration {
	return time.Duration(c.SDMXWindowSeconds) * time.Second
}

// FREDMinInterval returns the fixed inter-request delay.
func (c *Config) FREDMinInterval() time.Duration {
	return time.Duration(c.FREDMinIntervalMS) * time.Millisecond
}
