package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateComparison(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	if err := ensurePositiveMap(map[string]int{
		"capture.max_concurrency":            c.Capture.MaxConcurrency,
		"capture.task_timeout_seconds":       c.Capture.TaskTimeoutSeconds,
		"capture.navigation_timeout_seconds": c.Capture.NavigationTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Capture.RetryLimit < 0 {
		return errors.New("capture.retry_limit must not be negative")
	}
	if c.Capture.WebPQuality < 1 || c.Capture.WebPQuality > 100 {
		return errors.New("capture.webp_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateComparison() error {
	if c.Comparison.DefaultFailingThreshold < 0 || c.Comparison.DefaultFailingThreshold > 100 {
		return errors.New("comparison.default_failing_threshold must be between 0 and 100")
	}
	if c.Comparison.PixelThreshold < 0 || c.Comparison.PixelThreshold > 1 {
		return errors.New("comparison.pixel_threshold must be between 0 and 1")
	}
	if c.Comparison.BatchQueueSize <= 0 {
		return errors.New("comparison.batch_queue_size must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
