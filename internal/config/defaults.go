package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultUserAgent is sent with http(s) requests unless configured otherwise.
const DefaultUserAgent = "modelres"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Resolver: ResolverConfig{
			QueueSize:  16,
			MaxEntries: 0,
			Cache:      true,
		},
		Content: ContentConfig{
			TempDir:     "",
			HTTPTimeout: 30 * time.Second,
			UserAgent:   DefaultUserAgent,
		},
		Output: OutputConfig{
			Color:   true,
			Verbose: false,
			Quiet:   false,
		},
	}
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "modelres", "config.json")
}
