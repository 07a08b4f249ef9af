package main

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"bookforge/internal/api"
	"bookforge/internal/daemonrun"
	"bookforge/internal/deps"
	"bookforge/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bookforge daemon and HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Bind, "bind", "", "Override the API listen address")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Include source locations in logs")
	return cmd
}

type localStatus struct {
	DaemonRunning bool          `json:"daemon_running"`
	DatabasePath  string        `json:"database_path"`
	LockFilePath  string        `json:"lock_file_path"`
	APIBind       string        `json:"api_bind"`
	Queued        []string      `json:"queued"`
	Running       []string      `json:"running"`
	Providers     []deps.Status `json:"providers"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, generation lane and provider status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status := localStatus{
				DatabasePath: cfg.DatabasePath(),
				LockFilePath: cfg.LockPath(),
				APIBind:      cfg.Paths.APIBind,
				Providers:    deps.Check(cfg),
			}

			lock := flock.New(cfg.LockPath())
			acquired, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("inspect daemon lock: %w", err)
			}
			if acquired {
				_ = lock.Unlock()
			}
			status.DaemonRunning = !acquired

			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if status.Queued, err = st.BooksWithGeneration(cmd.Context(), store.GenerationQueued); err != nil {
				return err
			}
			if status.Running, err = st.BooksWithGeneration(cmd.Context(), store.GenerationRunning); err != nil {
				return err
			}

			return emit(cmd, ctx, status, func() error {
				return printStatus(cmd, status)
			})
		},
	}
}

func printStatus(cmd *cobra.Command, status localStatus) error {
	out := cmd.OutOrStdout()
	p := newStatusPrinter(out)

	p.header("Daemon")
	if status.DaemonRunning {
		p.line("Daemon", toneDone, "running, API on "+status.APIBind)
	} else {
		p.line("Daemon", toneActive, "not running (start with `bookforge serve`)")
	}
	p.field("Database", status.DatabasePath)
	p.field("Lane", fmt.Sprintf("%d running, %d queued", len(status.Running), len(status.Queued)))

	fmt.Fprintln(out)
	p.header("Providers")
	for _, provider := range status.Providers {
		p.provider(provider)
	}
	fmt.Fprintf(out, "\nAPI version %s\n", api.Version)
	return nil
}
