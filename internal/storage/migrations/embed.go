package migrations

import "embed"

// Embedded migration files.
//
// Postgres files are V<nnn>_*.sql (versioned, applied once) and
// R<nnn>_*.sql (repeatable view definitions, re-applied on checksum change).
// ClickHouse files are idempotent and applied in name order on every run.
var (
	//go:embed postgres/*.sql
	postgresFiles embed.FS

	//go:embed clickhouse/*.sql
	clickhouseFiles embed.FS
)
