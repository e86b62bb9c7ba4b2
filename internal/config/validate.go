package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRegistry() error {
	if c.Registry.BaseURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Registry.BaseURL)
	if err != nil {
		return fmt.Errorf("registry.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("registry.base_url must use http or https, got %q", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.MinRegionPx < 1 {
		return errors.New("capture.min_region_px must be at least 1")
	}
	if c.Capture.SelectionTimeout < 1 {
		return errors.New("capture.selection_timeout must be at least 1 second")
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
