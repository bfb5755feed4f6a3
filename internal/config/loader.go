package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MODELRES_RESOLVER_MAX_ENTRIES.
const EnvPrefix = "MODELRES"

// Loader defines the interface for loading configuration files.
type Loader interface {
	// Load loads configuration from the specified file path.
	Load(path string) (*Config, error)
	// LoadOrDefault loads configuration or returns defaults if file doesn't exist.
	LoadOrDefault(path string) (*Config, error)
	// Validate validates the configuration.
	Validate(config *Config) error
}

// FileLoader implements the Loader interface on top of viper. Files may be
// JSON, YAML or TOML, chosen by extension (JSON when there is none).
// Environment variables override file values and defaults.
type FileLoader struct{}

// NewLoader creates a new FileLoader instance.
func NewLoader() Loader {
	return &FileLoader{}
}

// Load loads configuration from the specified file path.
func (l *FileLoader) Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, NewConfigErrorWithCause(ConfigNotFound, path, "configuration file not found", err)
		}
		return nil, NewConfigErrorWithCause(ConfigInvalid, path, "failed to read configuration file", err)
	}
	return l.load(path)
}

// LoadOrDefault loads configuration or returns defaults if file doesn't
// exist. Environment overrides apply either way.
func (l *FileLoader) LoadOrDefault(path string) (*Config, error) {
	cfg, err := l.Load(path)
	if err != nil {
		if IsNotFound(err) {
			return l.load("")
		}
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (l *FileLoader) Validate(config *Config) error {
	return Validate(config)
}

func (l *FileLoader) load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("json")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, NewConfigErrorWithCause(ConfigInvalid, path, "invalid configuration syntax", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewConfigErrorWithCause(ConfigInvalid, path, "failed to decode configuration", err)
	}
	if err := Validate(&cfg); err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.File = path
		}
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every field of defaults so that partial files and
// environment overrides are merged over them.
func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("resolver.queue_size", defaults.Resolver.QueueSize)
	v.SetDefault("resolver.max_entries", defaults.Resolver.MaxEntries)
	v.SetDefault("resolver.cache", defaults.Resolver.Cache)
	v.SetDefault("content.temp_dir", defaults.Content.TempDir)
	v.SetDefault("content.http_timeout", defaults.Content.HTTPTimeout)
	v.SetDefault("content.user_agent", defaults.Content.UserAgent)
	v.SetDefault("output.color", defaults.Output.Color)
	v.SetDefault("output.verbose", defaults.Output.Verbose)
	v.SetDefault("output.quiet", defaults.Output.Quiet)
}

// ExpandPath expands ~ to home directory and evaluates relative paths.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	// Expand ~ to home directory
	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		if len(path) == 1 {
			return homeDir, nil
		}
		if path[1] == filepath.Separator {
			return filepath.Join(homeDir, path[2:]), nil
		}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return absPath, nil
}
