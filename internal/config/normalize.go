package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRegistry()
	c.normalizeCapture()
	c.normalizeQueue()
	c.normalizeWatcher()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		c.Paths.InboxDir = defaultInboxDir
	}
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeRegistry() {
	c.Registry.BaseURL = strings.TrimRight(strings.TrimSpace(c.Registry.BaseURL), "/")
	if c.Registry.RequestTimeout <= 0 {
		c.Registry.RequestTimeout = defaultRegistryTimeout
	}
}

func (c *Config) normalizeCapture() {
	if c.Capture.SelectionTimeout <= 0 {
		c.Capture.SelectionTimeout = defaultSelectionTimeout
	}
	if c.Capture.LocationTimeout <= 0 {
		c.Capture.LocationTimeout = defaultLocationTimeout
	}
	if c.Capture.MinRegionPx <= 0 {
		c.Capture.MinRegionPx = defaultMinRegionPx
	}
}

func (c *Config) normalizeQueue() {
	if c.Queue.ProgressTickMillis <= 0 {
		c.Queue.ProgressTickMillis = defaultProgressTickMs
	}
}

func (c *Config) normalizeWatcher() {
	if c.Watcher.SettleMillis <= 0 {
		c.Watcher.SettleMillis = defaultWatcherSettleMs
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
