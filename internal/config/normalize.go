package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLibrary()
	c.normalizeMonitoring()
	c.normalizeNotifications()
	c.normalizeLogging()
	c.normalizeRelocation()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.MetricsBind = strings.TrimSpace(c.Paths.MetricsBind)
	return nil
}

func (c *Config) normalizeLibrary() {
	c.Library.DefaultPattern = strings.TrimSpace(c.Library.DefaultPattern)
	if len(c.Library.IgnoredArtifacts) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(c.Library.IgnoredArtifacts))
	cleaned := make([]string, 0, len(c.Library.IgnoredArtifacts))
	for _, name := range c.Library.IgnoredArtifacts {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		cleaned = append(cleaned, name)
	}
	c.Library.IgnoredArtifacts = cleaned
}

func (c *Config) normalizeMonitoring() {
	if c.Monitoring.DebounceMillis <= 0 {
		c.Monitoring.DebounceMillis = defaultMonitoringDebounceMillis
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
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

func (c *Config) normalizeRelocation() {
	if c.Relocation.LockTimeoutSeconds <= 0 {
		c.Relocation.LockTimeoutSeconds = defaultLockTimeoutSeconds
	}
}
