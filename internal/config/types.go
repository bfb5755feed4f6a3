package config

import "time"

// Config represents the global modelres configuration.
type Config struct {
	// Resolver configuration for the resolution pipeline.
	Resolver ResolverConfig `json:"resolver" mapstructure:"resolver"`
	// Content configuration for fetching references.
	Content ContentConfig `json:"content" mapstructure:"content"`
	// Output configuration for display and logging.
	Output OutputConfig `json:"output" mapstructure:"output"`
}

// ResolverConfig represents resolution pipeline settings.
type ResolverConfig struct {
	// QueueSize is the initial capacity of the worker queue. The queue grows past it.
	QueueSize int `json:"queue_size" mapstructure:"queue_size"`
	// MaxEntries caps how many archive entries are probed (0 = no limit).
	MaxEntries int `json:"max_entries" mapstructure:"max_entries"`
	// Cache enables the process-wide model cache.
	Cache bool `json:"cache" mapstructure:"cache"`
}

// ContentConfig represents content access settings.
type ContentConfig struct {
	// TempDir is where downloads and canonical archives are written (empty = OS default).
	TempDir string `json:"temp_dir" mapstructure:"temp_dir"`
	// HTTPTimeout is the timeout for downloading http(s) references.
	HTTPTimeout time.Duration `json:"http_timeout" mapstructure:"http_timeout"`
	// UserAgent is sent with http(s) requests.
	UserAgent string `json:"user_agent" mapstructure:"user_agent"`
}

// OutputConfig represents output and display settings.
type OutputConfig struct {
	// Color enables colored terminal output.
	Color bool `json:"color" mapstructure:"color"`
	// Verbose enables verbose logging output.
	Verbose bool `json:"verbose" mapstructure:"verbose"`
	// Quiet suppresses non-error output.
	Quiet bool `json:"quiet" mapstructure:"quiet"`
}
