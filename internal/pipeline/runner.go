package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"options-data-lab/internal/aging"
	"options-data-lab/internal/domain"
	"options-data-lab/internal/history"
	"options-data-lab/internal/ingestion"
	"options-data-lab/internal/merge"
	"options-data-lab/internal/metrics"
	"options-data-lab/internal/observability"
	"options-data-lab/internal/storage"
)

// Run outcomes.
var (
	// ErrTimeout is the cause of a run cut off by its deadline.
	ErrTimeout = errors.New("run timed out")

	// ErrOutOfMemory is the cause of a run stopped by the memory monitor.
	ErrOutOfMemory = errors.New("run exceeded memory limit")

	// ErrTasksFailed is returned when the run completed but some task failed.
	ErrTasksFailed = errors.New("one or more tasks failed")
)

// Exit codes of a collector run.
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitTimeout     = 124
	ExitOutOfMemory = 137
)

// Migrator applies pending schema migrations.
type Migrator interface {
	Migrate(ctx context.Context) (int, error)
}

// Stores groups every store a run touches.
type Stores struct {
	RawOptions     storage.RawOptionStore
	OptionHistory  storage.OptionHistoryStore
	RawStocks      storage.RawStockStore
	StockHistory   storage.StockHistoryStore
	Fundamentals   storage.FundamentalStore
	Reference      storage.ReferenceStore
	Dividends      storage.DividendStore
	MasterData     storage.MasterDataStore
	Classification storage.ClassificationStore
	ChangeLog      storage.ChangeLogStore
	IVStats        storage.IVStatStore
	Volatility     storage.VolatilityStore // optional
	Streaks        storage.DividendStreakStore
}

// Options for creating a Runner.
type Options struct {
	Stores   Stores
	Sources  []ingestion.Source
	Migrator Migrator // optional; nil skips schema migrations

	// Monitor stops the run with ErrOutOfMemory when it fires. Optional.
	Monitor *observability.MemoryMonitor
	Timeout time.Duration // 0 = no deadline

	Logger *zap.SugaredLogger
	Clock  func() time.Time
}

// Runner executes collector runs.
type Runner struct {
	stores   Stores
	migrator Migrator
	monitor  *observability.MemoryMonitor
	timeout  time.Duration
	logger   *zap.SugaredLogger
	clock    func() time.Time

	ingest   *ingestion.Manager
	history  *history.Historizer
	registry *aging.Registry
	merged   *merge.Reader
	deriver  *metrics.Deriver
}

// New creates a Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	s := opts.Stores
	return &Runner{
		stores:   s,
		migrator: opts.Migrator,
		monitor:  opts.Monitor,
		timeout:  opts.Timeout,
		logger:   logger,
		clock:    clock,
		ingest: ingestion.NewManager(opts.Sources, ingestion.Stores{
			RawOptions:   s.RawOptions,
			RawStocks:    s.RawStocks,
			Fundamentals: s.Fundamentals,
			Reference:    s.Reference,
			Dividends:    s.Dividends,
			ChangeLog:    s.ChangeLog,
		}, logger.Named("ingestion")),
		history: history.New(history.Stores{
			RawOptions:     s.RawOptions,
			OptionHistory:  s.OptionHistory,
			RawStocks:      s.RawStocks,
			StockHistory:   s.StockHistory,
			Fundamentals:   s.Fundamentals,
			MasterData:     s.MasterData,
			ChangeLog:      s.ChangeLog,
			Classification: s.Classification,
		}, logger.Named("history")),
		registry: aging.NewRegistry(s.Classification, logger.Named("aging")),
		merged:   merge.NewReader(s.OptionHistory, s.StockHistory, s.Reference, logger.Named("merge")),
		deriver: metrics.NewDeriver(metrics.Stores{
			Options:    s.OptionHistory,
			Stocks:     s.StockHistory,
			Dividends:  s.Dividends,
			IVStats:    s.IVStats,
			Volatility: s.Volatility,
			Streaks:    s.Streaks,
		}, logger.Named("metrics")),
	}
}

// TaskResult is the outcome of one task of a run.
type TaskResult struct {
	Name     string
	Duration time.Duration
	Rows     int64
	Detail   string
	Err      error
}

// RunResult is the outcome of one run.
type RunResult struct {
	RunID      string
	Mode       Mode
	AsOf       time.Time
	Started    time.Time
	Finished   time.Time
	Tasks      []TaskResult
	Skipped    []string // unavailable sources
	PeakMemory uint64   // bytes; 0 when unmonitored
	Err        error
}

// ExitCode maps the outcome to the collector's process exit code.
func (r *RunResult) ExitCode() int {
	switch {
	case r.Err == nil:
		return ExitOK
	case errors.Is(r.Err, ErrOutOfMemory):
		return ExitOutOfMemory
	case errors.Is(r.Err, ErrTimeout):
		return ExitTimeout
	}
	return ExitFailed
}

// Outcome is a short label for metrics and reports.
func (r *RunResult) Outcome() string {
	switch r.ExitCode() {
	case ExitOK:
		return "success"
	case ExitTimeout:
		return "timeout"
	case ExitOutOfMemory:
		return "oom"
	}
	return "failed"
}

// Failed returns the failed tasks.
func (r *RunResult) Failed() []TaskResult {
	var out []TaskResult
	for _, t := range r.Tasks {
		if t.Err != nil {
			out = append(out, t)
		}
	}
	return out
}

// Run executes one collector run in mode.
// The returned result is never nil; its Err decides the exit code.
func (r *Runner) Run(parent context.Context, mode Mode) *RunResult {
	res := &RunResult{
		RunID:   uuid.NewString(),
		Mode:    mode,
		Started: r.clock(),
	}
	res.AsOf = res.Started

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	if r.timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeoutCause(ctx, r.timeout, ErrTimeout)
		defer stop()
	}
	if r.monitor != nil {
		go r.monitor.Run(ctx)
		go func() {
			select {
			case <-r.monitor.Exceeded():
				cancel(ErrOutOfMemory)
			case <-ctx.Done():
			}
		}()
	}

	log := r.logger.With("run_id", res.RunID, "mode", mode)
	log.Infow("run started", "as_of", res.AsOf.Format(time.RFC3339))

	r.runTasks(ctx, mode, res, log)

	res.Finished = r.clock()
	if r.monitor != nil {
		res.PeakMemory = r.monitor.Peak()
	}
	cause := context.Cause(ctx)
	switch failed := res.Failed(); {
	case errors.Is(cause, ErrTimeout), errors.Is(cause, ErrOutOfMemory):
		res.Err = cause
	case parent.Err() != nil:
		res.Err = parent.Err()
	case len(failed) > 0:
		res.Err = fmt.Errorf("%w: %d of %d", ErrTasksFailed, len(failed), len(res.Tasks))
	}

	elapsed := res.Finished.Sub(res.Started)
	observability.RecordRun(string(mode), res.Outcome(), res.ExitCode(), elapsed.Seconds())
	if res.Err == nil {
		log.Infow("run finished", "duration", elapsed, "tasks", len(res.Tasks))
	} else {
		log.Errorw("run finished with errors", "duration", elapsed, "error", res.Err)
	}
	return res
}

func (r *Runner) runTasks(ctx context.Context, mode Mode, res *RunResult, log *zap.SugaredLogger) {
	task := func(name string, fn func(ctx context.Context, t *TaskResult) error) bool {
		if ctx.Err() != nil {
			return false
		}
		t := TaskResult{Name: name}
		start := time.Now()
		t.Err = fn(ctx, &t)
		t.Duration = time.Since(start)
		observability.RecordTask(name, t.Duration.Seconds())
		if t.Err != nil {
			log.Errorw("task failed", "task", name, "error", t.Err)
		} else {
			log.Infow("task done", "task", name, "rows", t.Rows, "duration", t.Duration)
		}
		res.Tasks = append(res.Tasks, t)
		return true
	}

	task("migrate", r.migrate)
	if mode == ModeMigrationsOnly {
		return
	}

	var fundamentals []*domain.FundamentalRecord
	task("ingest", func(ctx context.Context, t *TaskResult) error {
		report, err := r.ingest.Collect(ctx, res.RunID, res.AsOf, mode.Tables()...)
		if err != nil {
			return err
		}
		fundamentals = report.Fundamentals
		res.Skipped = report.SkippedSources()
		for _, tr := range report.Tables {
			t.Rows += int64(tr.Rows)
		}
		failed := report.Failed()
		t.Detail = fmt.Sprintf("%d tables, %d skipped sources, %d failed", len(report.Tables), len(res.Skipped), len(failed))
		if len(failed) > 0 {
			errs := make([]error, 0, len(failed))
			for _, f := range failed {
				errs = append(errs, f.Err)
			}
			return errors.Join(errs...)
		}
		return nil
	})

	if mode.options() {
		task("historize_options", func(ctx context.Context, t *TaskResult) error {
			for _, p := range domain.Providers {
				hr, err := r.history.Options(ctx, res.RunID, p, res.AsOf)
				if err != nil {
					return err
				}
				r.recordHistory(t, hr)
			}
			return nil
		})
		task("historize_fundamentals", func(ctx context.Context, t *TaskResult) error {
			hr, err := r.history.Fundamentals(ctx, res.RunID, fundamentals, res.AsOf)
			if err != nil {
				return err
			}
			r.recordHistory(t, hr)
			return nil
		})
	}
	if mode.stocks() {
		task("historize_stocks", func(ctx context.Context, t *TaskResult) error {
			hr, err := r.history.Stocks(ctx, res.RunID, res.AsOf)
			if err != nil {
				return err
			}
			r.recordHistory(t, hr)
			return nil
		})
	}

	if mode.options() {
		task("merge_check", r.mergeCheck)
	}
	task("derive", func(ctx context.Context, t *TaskResult) error {
		return r.derive(ctx, res.RunID, res.AsOf, t)
	})
}

func (r *Runner) migrate(ctx context.Context, t *TaskResult) error {
	if r.migrator != nil {
		n, err := r.migrator.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		t.Rows = int64(n)
	}
	seeded, err := r.registry.Seed(ctx, r.clock())
	if err != nil {
		return fmt.Errorf("seed aging classifications: %w", err)
	}
	t.Detail = fmt.Sprintf("%d migrations applied, %d fields classified", t.Rows, seeded)
	return nil
}

func (r *Runner) recordHistory(t *TaskResult, hr *history.Result) {
	t.Rows += hr.Inserted
	observability.RecordHistorized(hr.Table, hr.Inserted, hr.Ignored, hr.FieldChanges)
	if hr.Skipped {
		t.Detail = "skipped (weekend)"
	}
}

func (r *Runner) mergeCheck(ctx context.Context, t *TaskResult) error {
	merged, err := r.merged.Build(ctx)
	if err != nil {
		return err
	}
	priced := metrics.PriceAll(merged.Rows)
	flagged := 0
	for _, p := range priced {
		if p.ExtrinsicAnomaly {
			flagged++
		}
	}
	for _, a := range merged.Anomalies {
		observability.RecordMergeAnomaly(a.Source, 1)
	}
	observability.RecordExtrinsicFlagged(flagged)

	t.Rows = int64(len(merged.Rows))
	t.Detail = fmt.Sprintf("%d join anomalies, %d negative extrinsic", len(merged.Anomalies), flagged)
	return nil
}

func (r *Runner) derive(ctx context.Context, runID string, asOf time.Time, t *TaskResult) error {
	sum, err := r.deriver.Run(ctx, asOf)
	if errors.Is(err, metrics.ErrNoSymbols) {
		t.Detail = "no symbols"
		return nil
	}
	if err != nil {
		return err
	}
	observability.RecordDerived("iv_stats", sum.IVStats)
	observability.RecordDerived("historical_volatility", sum.VolatilityPoints)
	observability.RecordDerived("dividend_streaks", sum.Streaks)

	t.Rows = int64(sum.IVStats + sum.VolatilityPoints + sum.Streaks)
	t.Detail = fmt.Sprintf("%d symbols, %d without monthly chain", sum.Symbols, len(sum.SkippedIV))
	return r.stores.ChangeLog.Append(ctx, &domain.ChangeLogEntry{
		RunID:         runID,
		OperationType: domain.OperationDerive,
		TableName:     "iv_stats_daily",
		AffectedRows:  int64(sum.IVStats),
		AdditionalData: map[string]any{
			"historical_volatility": sum.VolatilityPoints,
			"dividend_streaks":      sum.Streaks,
			"skipped_iv":            len(sum.SkippedIV),
		},
	})
}
