package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"

	chstore "options-data-lab/internal/storage/clickhouse"
)

// ClickHouseMigrator creates the target database and applies the embedded
// ClickHouse files. Every statement is idempotent, so no version table is kept.
type ClickHouseMigrator struct {
	dsn string
}

// NewClickHouseMigrator creates a migrator for the database named in dsn.
func NewClickHouseMigrator(dsn string) *ClickHouseMigrator {
	return &ClickHouseMigrator{dsn: dsn}
}

// Migrate implements the pipeline's Migrator. Returns the number of files applied.
func (m *ClickHouseMigrator) Migrate(ctx context.Context) (int, error) {
	conn, n, err := migrateClickHouse(ctx, m.dsn)
	if err != nil {
		return 0, err
	}
	return n, conn.Close()
}

func migrateClickHouse(ctx context.Context, dsn string) (*chstore.Conn, int, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, 0, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, 0, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		admin.Close()
		return nil, 0, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := admin.Close(); err != nil {
		return nil, 0, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, 0, fmt.Errorf("connect clickhouse db: %w", err)
	}

	entries, err := fs.ReadDir(clickhouseFiles, "clickhouse")
	if err != nil {
		conn.Close()
		return nil, 0, fmt.Errorf("read embedded clickhouse migrations: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(clickhouseFiles, "clickhouse/"+file)
		if err != nil {
			conn.Close()
			return nil, 0, fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			conn.Close()
			return nil, 0, fmt.Errorf("validate migration %s: %w", file, err)
		}
		// The native protocol runs one statement per Exec.
		for _, stmt := range splitStatements(string(data)) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, 0, fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}
	return conn, len(files), nil
}

// splitStatements drops -- comment lines and splits on semicolons.
// Migration files must not put semicolons inside string literals or
// block comments; validateNoSemicolonInStrings enforces the first rule.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch ch := sql[i]; {
		case ch == '\'' && i+1 < len(sql) && sql[i+1] == '\'':
			i++ // escaped quote
		case ch == '\'':
			inString = !inString
		case ch == ';' && inString:
			return fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
