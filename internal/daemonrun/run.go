package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/daemon"
	"bindery/internal/ipc"
	"bindery/internal/logging"
	"bindery/internal/metrics"
	"bindery/internal/notifications"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when non-empty.
	LogLevel    string
	Development bool
	// Ready is closed once the IPC socket accepts connections.
	Ready chan<- struct{}
}

// Run starts binderyd and blocks until SIGINT, SIGTERM, or ctx cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogFilePath()},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg)

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog", logging.Error(err))
		return err
	}

	recorder := metrics.NewRecorder()
	d, err := daemon.New(cfg, store, logger, notifications.NewService(cfg), recorder)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if bind := strings.TrimSpace(cfg.Paths.MetricsBind); bind != "" {
		metricsServer := metrics.NewServer(bind, recorder, logger)
		go func() {
			if err := metricsServer.Start(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
				logging.WarnWithContext(logger, "metrics server stopped", "metrics_server_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check paths.metrics_bind is a free host:port"),
					logging.String(logging.FieldImpact, "metrics are not exported"),
				)
			}
		}()
	}

	if opts.Ready != nil {
		close(opts.Ready)
	}

	<-signalCtx.Done()
	logger.Info("bindery daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("state_dir", cfg.Paths.StateDir),
		logging.String("default_pattern", cfg.Library.DefaultPattern),
		logging.Bool("monitoring_enabled", cfg.Monitoring.Enabled),
		logging.Int("debounce_millis", cfg.Monitoring.DebounceMillis),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("metrics_bind", cfg.Paths.MetricsBind),
		logging.Bool("reconcile_on_startup", cfg.Relocation.ReconcileOnStartup),
	)
}
