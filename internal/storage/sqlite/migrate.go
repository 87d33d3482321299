package sqlite

import (
	"context"
	"database/sql"
	"sort"

	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/storage/sqlite/migrations"
)

// runMigrations applies every migration with a version not yet
// recorded in schema_migrations, in order, inside one transaction per
// migration.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		return errs.Storage("create schema_migrations table", err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return errs.Storage("read schema_migrations", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return errs.Storage("scan schema_migrations row", err)
		}
		applied[v] = true
	}
	rows.Close()

	ordered := migrations.All()
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	for _, m := range ordered {
		if applied[m.Version] {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errs.Storage("begin migration transaction", err)
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return errs.Storage("apply migration "+m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			tx.Rollback()
			return errs.Storage("record migration "+m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return errs.Storage("commit migration "+m.Name, err)
		}
	}
	return nil
}
