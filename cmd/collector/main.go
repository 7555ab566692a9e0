// Command collector runs the options data collection pipeline.
//
// Usage:
//
//	collector run --mode option_data
//	collector migrate
//	collector schedule
//
// A run exits 0 on success, 1 on failure, 124 on timeout and 137 when the
// memory limit was exceeded. A run whose mode is already locked exits 0.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"options-data-lab/internal/app"
	"options-data-lab/internal/config"
	"options-data-lab/internal/logger"
	"options-data-lab/internal/observability"
	"options-data-lab/internal/pipeline"
	"options-data-lab/internal/runlock"
)

var (
	cfg *config.Config
	log *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "collector",
	Short: "Options data collector",
	Long: `Collects option chains and stock data from provider exports, accumulates
daily history, merges providers and derives volatility and dividend metrics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		log, err = logger.New(cfg.App.LogLevel, cfg.App.Env)
		return err
	},
}

func main() {
	rootCmd.AddCommand(runCmd(), migrateCmd(), scheduleCmd())
	if err := rootCmd.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(pipeline.ExitFailed)
	}
}

// exitError carries a run's exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }

type runFlags struct {
	mode          string
	timeout       time.Duration
	memoryLimitMB uint64
	dataDir       string
	reportDir     string
}

func runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one collection cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := pipeline.ParseMode(f.mode)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, &f)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stopMetrics := serveMetrics(cfg.Collector.MetricsAddr)
			defer stopMetrics()

			res, err := runLocked(ctx, mode)
			if err != nil {
				return err
			}
			if res == nil || res.ExitCode() == pipeline.ExitOK {
				return nil
			}
			return exitError{code: res.ExitCode(), err: res.Err}
		},
	}
	cmd.Flags().StringVar(&f.mode, "mode", string(pipeline.ModeAll), "run mode: option_data, stock_data_daily, all, only_run_migrations")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "run deadline (default from COLLECTOR_TIMEOUT)")
	cmd.Flags().Uint64Var(&f.memoryLimitMB, "memory-limit", 0, "RSS limit in MiB, 0 disables (default from COLLECTOR_MEMORY_LIMIT_MB)")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "provider export directory (default from COLLECTOR_DATA_DIR)")
	cmd.Flags().StringVar(&f.reportDir, "report-dir", "", "run report directory (default from COLLECTOR_REPORT_DIR)")
	return cmd
}

func applyRunFlags(cmd *cobra.Command, f *runFlags) {
	if cmd.Flags().Changed("timeout") {
		cfg.Collector.Timeout = f.timeout
	}
	if cmd.Flags().Changed("memory-limit") {
		cfg.Collector.MemoryLimitMB = f.memoryLimitMB
	}
	if f.dataDir != "" {
		cfg.Collector.DataDir = f.dataDir
	}
	if f.reportDir != "" {
		cfg.Collector.ReportDir = f.reportDir
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and seed the aging registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := runLocked(ctx, pipeline.ModeMigrationsOnly)
			if err != nil {
				return err
			}
			if res != nil && res.Err != nil {
				return exitError{code: res.ExitCode(), err: res.Err}
			}
			return nil
		},
	}
}

// runLocked executes one run under the mode's file lock. A nil result means
// the run was skipped because another run holds the lock.
func runLocked(ctx context.Context, mode pipeline.Mode) (*pipeline.RunResult, error) {
	lock, err := runlock.Acquire(cfg.Collector.LockDir, string(mode))
	if errors.Is(err, runlock.ErrLocked) {
		pid, _ := runlock.Owner(runlock.Path(cfg.Collector.LockDir, string(mode)))
		log.Warnw("run skipped, mode is locked", "mode", mode, "owner_pid", pid)
		observability.RecordRunSkipped(string(mode))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warnw("release run lock", "path", lock.Path(), "error", err)
		}
	}()

	backend, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer backend.Close()

	var monitor *observability.MemoryMonitor
	if limit := cfg.Collector.MemoryLimitMB; limit > 0 {
		if monitor, err = observability.NewMemoryMonitor(5*time.Second, limit<<20, log); err != nil {
			return nil, fmt.Errorf("start memory monitor: %w", err)
		}
	}

	runner := pipeline.New(pipeline.Options{
		Stores:   backend.Stores,
		Sources:  app.CSVSources(cfg.Collector.DataDir),
		Migrator: backend.Migrator,
		Monitor:  monitor,
		Timeout:  cfg.Collector.Timeout,
		Logger:   log,
	})
	res := runner.Run(ctx, mode)

	if err := writeReport(cfg.Collector.ReportDir, res); err != nil {
		log.Warnw("write run report", "error", err)
	}
	return res, nil
}

func writeReport(dir string, res *pipeline.RunResult) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("run_%s_%s.md", res.Started.UTC().Format("20060102T150405"), res.Mode)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(pipeline.RenderMarkdown(res)), 0o644); err != nil {
		return err
	}
	log.Infow("run report written", "path", path)
	return nil
}

// serveMetrics exposes /metrics while the command runs. Empty addr disables it.
func serveMetrics(addr string) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnw("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
