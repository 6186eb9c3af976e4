// Package config loads, normalizes, and validates Bindery configuration.
//
// Configuration is TOML. Load looks at the explicit path first, then
// ~/.config/bindery/config.toml, then ./bindery.toml, and falls back to
// Default when none exist. Path fields are expanded to absolute paths before
// Validate runs, so downstream packages can use them without further checks.
package config
