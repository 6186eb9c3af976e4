package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.MetricsBind != "" {
		if _, _, err := net.SplitHostPort(c.Paths.MetricsBind); err != nil {
			return fmt.Errorf("paths.metrics_bind: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if strings.HasPrefix(c.Library.DefaultPattern, "/") || strings.HasPrefix(c.Library.DefaultPattern, "\\") {
		return errors.New("library.default_pattern must be relative (remove the leading separator)")
	}
	for _, name := range c.Library.IgnoredArtifacts {
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("library.ignored_artifacts: %q must be a bare file name", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}
