package postgres

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// Migrate applies every embedded *.up.sql migration not yet recorded in
// schema_migrations, in ascending version order, inside one transaction per
// file. Down migrations ship alongside the up files for manual rollback but
// are never applied automatically.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("op=postgres.migrate.read_dir: %w", err)
	}

	type migration struct {
		version int64
		name    string
	}
	var all []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return fmt.Errorf("op=postgres.migrate.parse_version: %w: %s", err, entry.Name())
		}
		all = append(all, migration{version: version, name: entry.Name()})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].version < all[j].version })

	// The tracking table itself ships as migration 0001; bootstrap it
	// outside the version-checked loop so Migrate works against an empty
	// database.
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("op=postgres.migrate.bootstrap: %w", err)
	}

	applied := make(map[int64]bool)
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("op=postgres.migrate.list_applied: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("op=postgres.migrate.scan_applied: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("op=postgres.migrate.rows: %w", err)
	}

	for _, m := range all {
		if applied[m.version] {
			continue
		}
		body, err := migrationFiles.ReadFile("migrations/" + m.name)
		if err != nil {
			return fmt.Errorf("op=postgres.migrate.read_file: %w: %s", err, m.name)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("op=postgres.migrate.begin: %w", err)
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("op=postgres.migrate.apply: %w: %s", err, m.name)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("op=postgres.migrate.record: %w: %s", err, m.name)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("op=postgres.migrate.commit: %w: %s", err, m.name)
		}
	}

	return nil
}
