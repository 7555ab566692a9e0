package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/ingestion"
	"options-data-lab/internal/ingestion/stub"
	"options-data-lab/internal/storage/memory"
)

var (
	tuesday      = time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	optionHeader = []string{"symbol", "option_type", "strike", "expiration_date", "bid", "ask", "open_interest"}
)

type countingMigrator struct{ calls int }

func (m *countingMigrator) Migrate(context.Context) (int, error) {
	m.calls++
	return 2, nil
}

// blockingSource waits until the run is cancelled.
type blockingSource struct{}

func (blockingSource) Name() string     { return "massive" }
func (blockingSource) Tables() []string { return []string{ingestion.TableOptions} }
func (blockingSource) Fetch(ctx context.Context, _ string) (*ingestion.Batch, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func memoryStores() Stores {
	return Stores{
		RawOptions:     memory.NewRawOptionStore(),
		OptionHistory:  memory.NewOptionHistoryStore(),
		RawStocks:      memory.NewRawStockStore(),
		StockHistory:   memory.NewStockHistoryStore(),
		Fundamentals:   memory.NewFundamentalStore(),
		Reference:      memory.NewReferenceStore(),
		Dividends:      memory.NewDividendStore(),
		MasterData:     memory.NewMasterDataStore(),
		Classification: memory.NewClassificationStore(),
		ChangeLog:      memory.NewChangeLogStore(),
		IVStats:        memory.NewIVStatStore(),
		Volatility:     memory.NewVolatilityStore(),
		Streaks:        memory.NewDividendStreakStore(),
	}
}

func newRunner(stores Stores, sources ...ingestion.Source) *Runner {
	return New(Options{
		Stores:  stores,
		Sources: sources,
		Clock:   func() time.Time { return tuesday },
	})
}

func taskNames(r *RunResult) []string {
	out := make([]string, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		out = append(out, t.Name)
	}
	return out
}

func TestRun_OptionDataWithSkippedSource(t *testing.T) {
	ctx := context.Background()
	stores := memoryStores()
	massive := stub.NewSource("massive").With(ingestion.TableOptions, optionHeader,
		[]string{"AAPL", "call", "150", "2026-04-17", "1.00", "1.20", "10"},
		[]string{"AAPL", "put", "150", "2026-04-17", "2.00", "2.20", "12"})
	yahoo := stub.NewSource("yahoo").With(ingestion.TableOptions, optionHeader)
	yahoo.Unavailable = true

	res := newRunner(stores, massive, yahoo).Run(ctx, ModeOptionData)
	require.NoError(t, res.Err)
	assert.Equal(t, ExitOK, res.ExitCode())
	assert.Equal(t, []string{"yahoo"}, res.Skipped)
	assert.Equal(t, []string{"migrate", "ingest", "historize_options", "historize_fundamentals", "merge_check", "derive"}, taskNames(res))
	assert.NotEmpty(t, res.RunID)

	current, err := stores.OptionHistory.GetCurrent(ctx, domain.ProviderMassive)
	require.NoError(t, err)
	assert.Len(t, current, 2)

	merged, err := New(Options{Stores: stores}).merged.GetMerged(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, merged, 2)
	for _, m := range merged {
		assert.False(t, m.HasYahoo, "skipped provider is absent from the merged view")
	}
}

func TestRun_RerunSameDayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	stores := memoryStores()
	src := stub.NewSource("massive").With(ingestion.TableOptions, optionHeader,
		[]string{"AAPL", "call", "150", "2026-04-17", "1.00", "1.20", "10"})

	r := newRunner(stores, src)
	require.NoError(t, r.Run(ctx, ModeOptionData).Err)
	second := r.Run(ctx, ModeOptionData)
	require.NoError(t, second.Err)

	for _, task := range second.Tasks {
		if task.Name == "historize_options" {
			assert.Zero(t, task.Rows, "second run of the day inserts nothing")
		}
	}
	n, err := stores.OptionHistory.CountByDate(ctx, domain.ProviderMassive, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRun_SchemaDriftFailsRunButContinues(t *testing.T) {
	stores := memoryStores()
	src := stub.NewSource("massive").
		With(ingestion.TableOptions, []string{"symbol", "strike"}, []string{"AAPL", "150"}).
		With(ingestion.TableEarnings, []string{"symbol", "earnings_date"}, []string{"AAPL", "2026-04-30"})

	res := newRunner(stores, src).Run(context.Background(), ModeOptionData)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrTasksFailed)
	assert.Equal(t, ExitFailed, res.ExitCode())
	require.Len(t, res.Failed(), 1)
	assert.Equal(t, "ingest", res.Failed()[0].Name)
	assert.Contains(t, taskNames(res), "derive")

	earnings, err := stores.Reference.GetEarningsDates(context.Background())
	require.NoError(t, err)
	assert.Len(t, earnings, 1)
}

func TestRun_RejectedTableDoesNotCarryYesterdaysQuotes(t *testing.T) {
	ctx := context.Background()
	stores := memoryStores()
	row := []string{"AAPL", "call", "150", "2026-04-17", "1.00", "1.20", "10"}
	massive := stub.NewSource("massive").With(ingestion.TableOptions, optionHeader, row)
	yahoo := stub.NewSource("yahoo").With(ingestion.TableOptions, optionHeader, row)
	require.NoError(t, newRunner(stores, massive, yahoo).Run(ctx, ModeOptionData).Err)

	wednesday := tuesday.AddDate(0, 0, 1)
	drifted := stub.NewSource("yahoo").With(ingestion.TableOptions, append(append([]string{}, optionHeader...), "surprise"),
		[]string{"AAPL", "call", "150", "2026-04-17", "9.10", "9.30", "10", "x"})
	res := New(Options{
		Stores:  stores,
		Sources: []ingestion.Source{massive, drifted},
		Clock:   func() time.Time { return wednesday },
	}).Run(ctx, ModeOptionData)
	assert.ErrorIs(t, res.Err, ErrTasksFailed)

	day := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	n, err := stores.OptionHistory.CountByDate(ctx, domain.ProviderYahoo, day)
	require.NoError(t, err)
	assert.Zero(t, n, "no yahoo history row is written for the rejected day")

	raw, err := stores.RawOptions.GetByProvider(ctx, domain.ProviderYahoo)
	require.NoError(t, err)
	assert.Empty(t, raw)

	merged, err := New(Options{Stores: stores}).merged.GetMerged(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, day, merged[0].SnapshotDate)
	assert.False(t, merged[0].HasYahoo)
}

func TestRun_MissingTableDoesNotCarryYesterdaysQuotes(t *testing.T) {
	ctx := context.Background()
	stores := memoryStores()
	row := []string{"AAPL", "call", "150", "2026-04-17", "1.00", "1.20", "10"}
	massive := stub.NewSource("massive").With(ingestion.TableOptions, optionHeader, row)
	yahoo := stub.NewSource("yahoo").With(ingestion.TableOptions, optionHeader, row)
	require.NoError(t, newRunner(stores, massive, yahoo).Run(ctx, ModeOptionData).Err)

	wednesday := tuesday.AddDate(0, 0, 1)
	res := New(Options{
		Stores:  stores,
		Sources: []ingestion.Source{massive, stub.NewSource("yahoo")},
		Clock:   func() time.Time { return wednesday },
	}).Run(ctx, ModeOptionData)
	require.NoError(t, res.Err)

	day := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	n, err := stores.OptionHistory.CountByDate(ctx, domain.ProviderYahoo, day)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = stores.OptionHistory.CountByDate(ctx, domain.ProviderMassive, day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRun_Timeout(t *testing.T) {
	r := New(Options{
		Stores:  memoryStores(),
		Sources: []ingestion.Source{blockingSource{}},
		Timeout: 20 * time.Millisecond,
		Clock:   func() time.Time { return tuesday },
	})
	res := r.Run(context.Background(), ModeOptionData)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Equal(t, ExitTimeout, res.ExitCode())
	assert.NotContains(t, taskNames(res), "derive")
}

func TestRun_MigrationsOnly(t *testing.T) {
	m := &countingMigrator{}
	stores := memoryStores()
	r := New(Options{Stores: stores, Migrator: m, Clock: func() time.Time { return tuesday }})

	res := r.Run(context.Background(), ModeMigrationsOnly)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, m.calls)
	assert.Equal(t, []string{"migrate"}, taskNames(res))
	assert.Equal(t, int64(2), res.Tasks[0].Rows)

	c, err := stores.Classification.Get(context.Background(), "option_quotes", "strike")
	require.NoError(t, err)
	assert.Equal(t, domain.TierMaster, c.Tier)
}

func TestRun_StockDataDaily(t *testing.T) {
	stores := memoryStores()
	src := stub.NewSource("yahoo").With(ingestion.TableStocks, []string{"symbol", "close", "live_price"},
		[]string{"AAPL", "180", "181.5"})

	res := newRunner(stores, src).Run(context.Background(), ModeStockDataDaily)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"migrate", "ingest", "historize_stocks", "derive"}, taskNames(res))

	current, err := stores.StockHistory.GetCurrent(context.Background())
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, 181.5, *current[0].Price())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{ErrTimeout, ExitTimeout},
		{fmt.Errorf("wrapped: %w", ErrOutOfMemory), ExitOutOfMemory},
		{ErrTasksFailed, ExitFailed},
		{errors.New("boom"), ExitFailed},
	}
	for _, tt := range tests {
		r := &RunResult{Err: tt.err}
		if got := r.ExitCode(); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" ALL ")
	require.NoError(t, err)
	assert.Equal(t, ModeAll, m)
	_, err = ParseMode("weekly")
	assert.Error(t, err)
	assert.Contains(t, ModeAll.Tables(), ingestion.TableStocks)
}

func TestRenderMarkdown(t *testing.T) {
	res := &RunResult{
		RunID:      "r-1",
		Mode:       ModeAll,
		Started:    tuesday,
		Finished:   tuesday.Add(90 * time.Second),
		PeakMemory: 3 << 30,
		Skipped:    []string{"barchart"},
		Tasks: []TaskResult{
			{Name: "ingest", Rows: 12345, Detail: "a|b"},
			{Name: "derive", Err: errors.New("line one\nline two")},
		},
	}
	res.Err = fmt.Errorf("%w: 1 of 2", ErrTasksFailed)

	md := RenderMarkdown(res)
	assert.Contains(t, md, "# Collector Run all")
	assert.Contains(t, md, "| Outcome | failed (exit 1) |")
	assert.Contains(t, md, "| Peak Memory | 3.0 GiB |")
	assert.Contains(t, md, "12,345")
	assert.Contains(t, md, "a/b")
	assert.Contains(t, md, "- barchart")
	assert.Contains(t, md, "- **derive**: line one; line two")
	assert.False(t, strings.Contains(md, "No tasks ran."))
}
