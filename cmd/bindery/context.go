package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/daemonctl"
	"bindery/internal/fileutil"
	"bindery/internal/ipc"
	"bindery/internal/logging"
	"bindery/internal/notifications"
	"bindery/internal/relocation"
)

type commandContext struct {
	socketFlag *string
	configFlag *string
	localFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string, localFlag *bool) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
		localFlag:  localFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) local() bool {
	return c.localFlag != nil && *c.localFlag
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil && strings.TrimSpace(*c.socketFlag) != "" {
		return *c.socketFlag
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	return ""
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

func (c *commandContext) withStore(fn func(*catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// relocator is the relocation surface shared by the daemon client and the
// in-process coordinator.
type relocator interface {
	MoveBooks(ctx context.Context, req relocation.Request) (relocation.BatchResult, error)
	NormalizeBook(ctx context.Context, bookID int64) (relocation.MoveOutcome, error)
	Reconcile(ctx context.Context) (relocation.ReconcileReport, error)
}

type remoteRelocator struct {
	client *ipc.Client
}

func (r remoteRelocator) MoveBooks(_ context.Context, req relocation.Request) (relocation.BatchResult, error) {
	resp, err := r.client.MoveBooks(ipc.MoveBooksRequest{Moves: req.Moves})
	if err != nil {
		return relocation.BatchResult{}, err
	}
	return resp.Result, nil
}

func (r remoteRelocator) NormalizeBook(_ context.Context, bookID int64) (relocation.MoveOutcome, error) {
	resp, err := r.client.NormalizeBook(bookID)
	if err != nil {
		return relocation.MoveOutcome{}, err
	}
	return resp.Outcome, nil
}

func (r remoteRelocator) Reconcile(context.Context) (relocation.ReconcileReport, error) {
	resp, err := r.client.Reconcile()
	if err != nil {
		return relocation.ReconcileReport{}, err
	}
	return resp.Report, nil
}

// withRelocator hands fn the daemon client, or an in-process coordinator
// without monitoring when --local is set. A local run holds the daemon lock
// so binderyd cannot watch the tree while files move.
func (c *commandContext) withRelocator(cmd *cobra.Command, fn func(relocator) error) error {
	if !c.local() {
		client, err := ipc.Dial(c.socketPath())
		if err != nil {
			if daemonctl.IsDaemonUnavailable(err) {
				return fmt.Errorf("daemon not running at %s; start it with `bindery start` or rerun with --local", c.socketPath())
			}
			return wrapDialError(err, c.socketPath())
		}
		defer client.Close()
		return fn(remoteRelocator{client: client})
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	unlock, err := holdDaemonLock(cfg)
	if err != nil {
		return err
	}
	defer unlock()

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{cfg.LogFilePath()},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return c.withStore(func(store *catalog.Store) error {
		if err := store.EnsureSetting(cmd.Context(), catalog.SettingDefaultPattern, cfg.Library.DefaultPattern); err != nil {
			return err
		}
		coord := relocation.NewCoordinator(relocation.Dependencies{
			Books:     store,
			Libraries: store,
			Settings:  store,
			Publisher: notifications.NewService(cfg),
			Helper:    relocation.NewHelper(logger, cfg.Library.IgnoredArtifacts...),
			Locker:    relocation.NewFileLocker(cfg.RelocationLockPath(), lockTimeout(cfg)),
			Logger:    logger,
		})
		return fn(coord)
	})
}

// holdDaemonLock takes the binderyd instance lock, failing when a daemon
// already owns it.
func holdDaemonLock(cfg *config.Config) (func(), error) {
	path := cfg.DaemonLockPath()
	if err := fileutil.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("prepare daemon lock: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("check daemon lock: %w", err)
	}
	if !ok {
		return nil, errors.New("binderyd is running; drop --local so the daemon can suspend its watchers during the move")
	}
	return func() { _ = lock.Unlock() }, nil
}

// notifyWatch asks a running daemon to pick up library changes. A missing
// daemon is not an error.
func (c *commandContext) notifyWatch(libraryID int64) {
	if c.local() {
		return
	}
	client, err := ipc.Dial(c.socketPath())
	if err != nil {
		return
	}
	defer client.Close()
	_, _ = client.WatchLibrary(libraryID)
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `bindery start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
