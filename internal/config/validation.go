package config

import (
	"fmt"
	"os"
	"strings"
)

// maxQueueSize bounds the preallocated worker queue capacity.
const maxQueueSize = 4096

// Validate validates the global configuration.
func Validate(config *Config) error {
	if config == nil {
		return NewConfigErrorWithField(ConfigValidationFailed, "", "", "configuration cannot be nil")
	}

	if config.Resolver.QueueSize < 1 || config.Resolver.QueueSize > maxQueueSize {
		return NewConfigErrorWithField(ConfigValidationFailed, "", "resolver.queue_size",
			fmt.Sprintf("queue size must be between 1 and %d, got %d", maxQueueSize, config.Resolver.QueueSize))
	}
	if config.Resolver.MaxEntries < 0 {
		return NewConfigErrorWithField(ConfigValidationFailed, "", "resolver.max_entries", "max entries cannot be negative")
	}

	if config.Content.HTTPTimeout <= 0 {
		return NewConfigErrorWithField(ConfigValidationFailed, "", "content.http_timeout", "timeout must be positive")
	}
	if strings.ContainsAny(config.Content.UserAgent, "\r\n") {
		return NewConfigErrorWithField(ConfigValidationFailed, "", "content.user_agent", "user agent cannot contain line breaks")
	}
	if err := validateTempDir(config.Content.TempDir); err != nil {
		return NewConfigErrorWithField(ConfigValidationFailed, "", "content.temp_dir", err.Error())
	}

	if config.Output.Quiet && config.Output.Verbose {
		return NewConfigErrorWithField(ConfigValidationFailed, "", "output", "quiet and verbose cannot both be set")
	}
	return nil
}

// validateTempDir checks that a configured temp directory, if any, exists.
func validateTempDir(dir string) error {
	if dir == "" {
		return nil
	}
	expanded, err := ExpandPath(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return fmt.Errorf("temp directory %s is not accessible: %v", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("temp directory %s is not a directory", dir)
	}
	return nil
}
