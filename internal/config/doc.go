// Package config loads, normalizes, and validates snapseal's TOML
// configuration. Missing files fall back to defaults; unknown fields in an
// existing file are decoded over the defaults so newly introduced settings
// are always populated.
package config
