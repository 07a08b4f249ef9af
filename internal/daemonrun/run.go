package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"bookforge/internal/config"
	"bookforge/internal/daemon"
	"bookforge/internal/deps"
	"bookforge/internal/export"
	"bookforge/internal/logging"
	"bookforge/internal/notifications"
	"bookforge/internal/store"
	"bookforge/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Bind overrides the configured API listen address when set.
	Bind string
}

// Runtime holds the components shared by the daemon and local CLI commands.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Workflow *workflow.Manager
	Exporter *export.Engine
	Notifier notifications.Service
}

// Open builds the content store, providers, export engine and workflow
// manager from cfg. A missing text provider key is a configuration error.
func Open(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	providers, err := deps.Build(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}

	notifier := notifications.NewService(cfg)
	exporter := export.NewEngine(cfg, st, logger, export.WithNotifier(notifier))
	manager := workflow.NewManager(cfg, st, providers.Text, providers.Resolver(cfg, logger), logger,
		workflow.WithNotifier(notifier),
		workflow.WithArtifactPurger(exporter),
	)
	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Workflow: manager,
		Exporter: exporter,
		Notifier: notifier,
	}, nil
}

// Close stops the lane, if running, and closes the store.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.Workflow.Stop()
	r.Workflow.Hub().Close()
	return r.Store.Close()
}

// Run starts the bookforge daemon and blocks until ctx ends or SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if opts.Bind != "" {
		cfg.Paths.APIBind = opts.Bind
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("bookforge-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update bookforge.log link: %v\n", err)
	}
	pidPath := filepath.Join(cfg.Paths.DataDir, "bookforge.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Open(cfg, logger)
	if err != nil {
		logger.Error("open runtime",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check provider keys and data directory access"),
		)
		return err
	}

	d, err := daemon.New(cfg, rt.Store, logger, rt.Workflow, rt.Exporter)
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "stop the other bookforge instance or use a different data directory"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("bookforge daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "bookforge.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", cfg.API.Token != ""),
		logging.Bool("auto_images", cfg.Generation.AutoImages),
	}
	for _, status := range deps.Check(cfg) {
		attrs = append(attrs,
			logging.String(status.Kind+"_provider", status.Name),
			logging.Bool(status.Kind+"_available", status.Available),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
