// Package app wires configuration to storage backends and sources for the
// collector, server and report binaries.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"options-data-lab/internal/api"
	"options-data-lab/internal/config"
	"options-data-lab/internal/domain"
	"options-data-lab/internal/ingestion"
	"options-data-lab/internal/merge"
	"options-data-lab/internal/metrics"
	"options-data-lab/internal/pipeline"
	"options-data-lab/internal/storage"
	chstore "options-data-lab/internal/storage/clickhouse"
	"options-data-lab/internal/storage/memory"
	"options-data-lab/internal/storage/migrations"
	pgstore "options-data-lab/internal/storage/postgres"
)

// MarketSource names the source that delivers stocks, fundamentals and reference tables.
const MarketSource = "market"

// Backend is an opened storage backend.
type Backend struct {
	Stores   pipeline.Stores
	Merged   storage.MergedOptionReader
	Priced   api.PricedReader
	Migrator pipeline.Migrator // nil for in-memory storage

	closers []func()
}

// Close releases all connections.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// Open creates the stores selected by cfg: in-memory, or Postgres with
// optional ClickHouse for the volatility series.
func Open(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*Backend, error) {
	if cfg.App.UseMemory {
		logger.Infow("using in-memory storage")
		return openMemory(logger), nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	b := &Backend{closers: []func(){pool.Close}}

	changeLog := pgstore.NewChangeLogStore(pool)
	merged := pgstore.NewMergedReader(pool)
	b.Merged = merged
	b.Priced = merged
	b.Stores = pipeline.Stores{
		RawOptions:     pgstore.NewRawOptionStore(pool),
		OptionHistory:  pgstore.NewOptionHistoryStore(pool),
		RawStocks:      pgstore.NewRawStockStore(pool),
		StockHistory:   pgstore.NewStockHistoryStore(pool),
		Fundamentals:   pgstore.NewFundamentalStore(pool),
		Reference:      pgstore.NewReferenceStore(pool),
		Dividends:      pgstore.NewDividendStore(pool),
		MasterData:     pgstore.NewMasterDataStore(pool),
		Classification: pgstore.NewClassificationStore(pool),
		ChangeLog:      changeLog,
		IVStats:        pgstore.NewIVStatStore(pool),
		Volatility:     pgstore.NewVolatilityStore(pool),
		Streaks:        pgstore.NewDividendStreakStore(pool),
	}
	chain := migrations.Chain{migrations.NewPostgresMigrator(pool, changeLog, logger)}

	if cfg.ClickHouse.Enabled() {
		dsn := cfg.ClickHouse.DSN()
		conn, err := chstore.NewConn(ctx, dsn)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open clickhouse: %w", err)
		}
		b.closers = append(b.closers, func() { _ = conn.Close() })
		b.Stores.IVStats = chstore.NewIVStatStore(conn)
		b.Stores.Volatility = chstore.NewVolatilityStore(conn)
		chain = append(chain, migrations.NewClickHouseMigrator(dsn))
		logger.Infow("volatility series stored in clickhouse", "host", cfg.ClickHouse.Host)
	}
	b.Migrator = chain

	return b, nil
}

func openMemory(logger *zap.SugaredLogger) *Backend {
	s := pipeline.Stores{
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
	merged := merge.NewReader(s.OptionHistory, s.StockHistory, s.Reference, logger)
	return &Backend{
		Stores: s,
		Merged: merged,
		Priced: metrics.PricedView{Merged: merged},
	}
}

// CSVSources returns one CSV source per option provider under dataDir/<provider>
// plus the market source under dataDir/market.
func CSVSources(dataDir string) []ingestion.Source {
	sources := make([]ingestion.Source, 0, len(domain.Providers)+1)
	for _, p := range domain.Providers {
		sources = append(sources, ingestion.NewCSVSource(string(p), filepath.Join(dataDir, string(p))))
	}
	return append(sources, ingestion.NewCSVSource(MarketSource, filepath.Join(dataDir, MarketSource)))
}
