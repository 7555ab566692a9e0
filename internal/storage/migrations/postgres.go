package migrations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
	"options-data-lab/internal/storage/postgres"
)

// ErrChecksumMismatch is returned when an applied versioned migration was edited.
var ErrChecksumMismatch = errors.New("applied migration was modified")

// ErrViewColumns is returned when a view does not expose its expected columns.
var ErrViewColumns = errors.New("view columns do not match")

// ViewColumns lists the columns each view must expose, in order.
// Readers depend on these names.
var ViewColumns = map[string][]string{
	"option_quotes_current": {
		"provider", "snapshot_date", "contract_id", "symbol", "option_type", "strike",
		"expiration_date", "bid", "ask", "last", "theoretical", "volume", "open_interest",
		"delta", "gamma", "theta", "vega", "rho", "implied_volatility",
	},
	"stock_prices_current": {
		"symbol", "snapshot_date", "open", "high", "low", "close", "volume", "dividends",
		"stock_splits", "live_price", "price_source", "captured_at",
	},
	"option_data_merged": mergedColumns,
	"option_pricing": append(append(append([]string{}, mergedColumns...),
		"days_to_expiration", "premium", "intrinsic_value", "iv"),
		"extrinsic_value", "extrinsic_anomaly", "moneyness", "expected_move"),
}

var mergedColumns = []string{
	"snapshot_date", "contract_id", "symbol", "option_type", "strike", "expiration_date",
	"bid", "ask", "last", "theoretical", "volume", "open_interest",
	"delta", "gamma", "theta", "vega", "rho", "implied_volatility",
	"has_yahoo", "yahoo_bid", "yahoo_ask", "yahoo_open_interest", "yahoo_iv",
	"has_barchart", "barchart_theoretical", "barchart_delta", "barchart_iv", "barchart_volume",
	"has_stock", "underlying_price", "has_earnings", "earnings_date",
	"has_analyst_target", "analyst_mean_target",
}

// migration is one embedded SQL file.
// V-prefixed files apply once; R-prefixed files are view definitions,
// reapplied (all of them, in order) whenever any of them changes.
type migration struct {
	name       string
	sql        string
	checksum   string
	repeatable bool
}

func loadPostgres() ([]migration, error) {
	entries, err := fs.ReadDir(postgresFiles, "postgres")
	if err != nil {
		return nil, fmt.Errorf("read embedded postgres migrations: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		data, err := fs.ReadFile(postgresFiles, "postgres/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		sum := sha256.Sum256(data)
		out = append(out, migration{
			name:       name,
			sql:        string(data),
			checksum:   hex.EncodeToString(sum[:]),
			repeatable: strings.HasPrefix(name, "R"),
		})
	}
	// Versioned files first, then the views in name order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].repeatable != out[j].repeatable {
			return !out[i].repeatable
		}
		return out[i].name < out[j].name
	})
	return out, nil
}

// PostgresMigrator applies the embedded Postgres migrations and records them
// in schema_migrations.
type PostgresMigrator struct {
	pool      *postgres.Pool
	changeLog storage.ChangeLogStore // optional
	runID     string
	logger    *zap.SugaredLogger
}

// NewPostgresMigrator creates a migrator. changeLog may be nil.
func NewPostgresMigrator(pool *postgres.Pool, changeLog storage.ChangeLogStore, logger *zap.SugaredLogger) *PostgresMigrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PostgresMigrator{pool: pool, changeLog: changeLog, logger: logger}
}

// WithRunID tags MIGRATION change-log entries with a run id.
func (m *PostgresMigrator) WithRunID(runID string) *PostgresMigrator {
	m.runID = runID
	return m
}

// Migrate applies pending migrations and validates the views.
// Returns the number of files applied.
func (m *PostgresMigrator) Migrate(ctx context.Context) (int, error) {
	files, err := loadPostgres()
	if err != nil {
		return 0, err
	}

	if _, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name        TEXT        PRIMARY KEY,
			checksum    TEXT        NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	var pending []migration
	viewsChanged := false
	for _, f := range files {
		prev, seen := applied[f.name]
		switch {
		case f.repeatable:
			if !seen || prev != f.checksum {
				viewsChanged = true
			}
		case !seen:
			pending = append(pending, f)
		case prev != f.checksum:
			return 0, fmt.Errorf("%w: %s", ErrChecksumMismatch, f.name)
		}
	}
	if viewsChanged || len(pending) > 0 {
		// Views are rebuilt after any table change; DROP ... CASCADE in one
		// file would otherwise leave a dependent view missing.
		for _, f := range files {
			if f.repeatable {
				pending = append(pending, f)
			}
		}
	}

	for _, f := range pending {
		if err := m.apply(ctx, f); err != nil {
			return 0, err
		}
		m.logger.Infow("applied migration", "name", f.name)
	}

	if err := m.ValidateViews(ctx); err != nil {
		return len(pending), err
	}

	if len(pending) > 0 && m.changeLog != nil {
		names := make([]string, 0, len(pending))
		for _, f := range pending {
			names = append(names, f.name)
		}
		if err := m.changeLog.Append(ctx, &domain.ChangeLogEntry{
			RunID:          m.runID,
			OperationType:  domain.OperationMigration,
			TableName:      "schema_migrations",
			AffectedRows:   int64(len(pending)),
			AdditionalData: map[string]any{"files": names},
		}); err != nil {
			return len(pending), fmt.Errorf("log migrations: %w", err)
		}
	}
	return len(pending), nil
}

func (m *PostgresMigrator) applied(ctx context.Context) (map[string]string, error) {
	rows, err := m.pool.Query(ctx, `SELECT name, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("load schema_migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		out[name] = sum
	}
	return out, rows.Err()
}

func (m *PostgresMigrator) apply(ctx context.Context, f migration) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, f.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.name, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO schema_migrations (name, checksum) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET checksum = EXCLUDED.checksum, applied_at = now()
		`, f.name, f.checksum); err != nil {
			return fmt.Errorf("record migration %s: %w", f.name, err)
		}
		return nil
	})
}

// ValidateViews checks every view in ViewColumns against information_schema.
func (m *PostgresMigrator) ValidateViews(ctx context.Context) error {
	names := make([]string, 0, len(ViewColumns))
	for v := range ViewColumns {
		names = append(names, v)
	}
	sort.Strings(names)

	for _, view := range names {
		rows, err := m.pool.Query(ctx, `
			SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1
			ORDER BY ordinal_position
		`, view)
		if err != nil {
			return fmt.Errorf("read %s columns: %w", view, err)
		}
		got, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("read %s columns: %w", view, err)
		}
		if want := ViewColumns[view]; !equalColumns(got, want) {
			return fmt.Errorf("%w: %s has %v, want %v", ErrViewColumns, view, got, want)
		}
	}
	return nil
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
