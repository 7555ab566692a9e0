// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Collector  CollectorConfig
	Server     ServerConfig
	Screening  ScreeningConfig
}

type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// UseMemory runs against in-memory stores; for local runs and demos.
	UseMemory bool `envconfig:"USE_MEMORY" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"options"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"options_data"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	// DSN overrides the individual fields when set.
	URL string `envconfig:"POSTGRES_DSN"`
}

// DSN returns the connection string.
func (c PostgresConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	// Empty Host disables ClickHouse; volatility series then live in Postgres only.
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"options_data"`
}

// Enabled reports whether a ClickHouse host is configured.
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// DSN returns the clickhouse:// connection string.
func (c ClickHouseConfig) DSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

type CollectorConfig struct {
	DataDir       string        `envconfig:"COLLECTOR_DATA_DIR" default:"./data/incoming"`
	LockDir       string        `envconfig:"COLLECTOR_LOCK_DIR" default:"/tmp"`
	Timeout       time.Duration `envconfig:"COLLECTOR_TIMEOUT" default:"2h"`
	MemoryLimitMB uint64        `envconfig:"COLLECTOR_MEMORY_LIMIT_MB" default:"0"`
	Schedule      string        `envconfig:"COLLECTOR_SCHEDULE" default:"0 7,19 * * 1-5"`
	ReportDir     string        `envconfig:"COLLECTOR_REPORT_DIR" default:"./reports"`
	MetricsAddr   string        `envconfig:"COLLECTOR_METRICS_ADDR" default:""`
}

type ServerConfig struct {
	Addr string `envconfig:"SERVER_ADDR" default:":8080"`
	// PollInterval is how often the websocket hub checks the change log.
	PollInterval time.Duration `envconfig:"SERVER_POLL_INTERVAL" default:"30s"`
}

type ScreeningConfig struct {
	MinOpenInterest int64   `envconfig:"SCREEN_MIN_OPEN_INTEREST" default:"100"`
	MinDTE          int     `envconfig:"SCREEN_MIN_DTE" default:"30"`
	MinStrikeRatio  float64 `envconfig:"SCREEN_MIN_STRIKE_RATIO" default:"1.0"`
	MaxStrikeRatio  float64 `envconfig:"SCREEN_MAX_STRIKE_RATIO" default:"1.2"`
	TopN            int     `envconfig:"SCREEN_TOP_N" default:"3"`
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}
