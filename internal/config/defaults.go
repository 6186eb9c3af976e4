package config

const (
	defaultStateDir                 = "~/.local/share/bindery"
	defaultLogDir                   = "~/.local/share/bindery/logs"
	defaultMetricsBind              = "127.0.0.1:7491"
	defaultPattern                  = "{authors}/<{series}/><{seriesIndex} - >{title}"
	defaultMonitoringEnabled        = true
	defaultMonitoringDebounceMillis = 500
	defaultNotifyRequestTimeout     = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLockTimeoutSeconds       = 30
	defaultReconcileOnStartup       = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			MetricsBind: defaultMetricsBind,
		},
		Library: Library{
			DefaultPattern: defaultPattern,
		},
		Monitoring: Monitoring{
			Enabled:        defaultMonitoringEnabled,
			DebounceMillis: defaultMonitoringDebounceMillis,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Relocation: Relocation{
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
			ReconcileOnStartup: defaultReconcileOnStartup,
		},
	}
}
