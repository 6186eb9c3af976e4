package testsupport

import (
	"path/filepath"
	"testing"

	"bindery/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.MetricsBind = ""
	cfgVal.Monitoring.DebounceMillis = 20
	cfgVal.Relocation.LockTimeoutSeconds = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithDefaultPattern overrides the default naming pattern.
func WithDefaultPattern(pattern string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Library.DefaultPattern = pattern
	}
}

// WithIgnoredArtifacts adds extra cleanup artifacts.
func WithIgnoredArtifacts(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Library.IgnoredArtifacts = append(b.cfg.Library.IgnoredArtifacts, names...)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
