package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0 7,19 * * 1-5", cfg.Collector.Schedule)
	assert.Equal(t, 2*time.Hour, cfg.Collector.Timeout)
	assert.Equal(t, 3, cfg.Screening.TopN)
	assert.False(t, cfg.ClickHouse.Enabled())
	assert.Contains(t, cfg.Postgres.DSN(), "dbname=options_data")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://u:p@db:5432/x")
	t.Setenv("CLICKHOUSE_HOST", "ch")
	t.Setenv("COLLECTOR_TIMEOUT", "90m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.Postgres.DSN())
	assert.True(t, cfg.ClickHouse.Enabled())
	assert.Equal(t, "clickhouse://default:@ch:9000/options_data", cfg.ClickHouse.DSN())
	assert.Equal(t, 90*time.Minute, cfg.Collector.Timeout)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("COLLECTOR_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}
