package database

import (
	"embed"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded migration files in lexical order, recording
// each applied file so reruns are no-ops.
func Migrate(db *sqlx.DB) error {
	const table = `CREATE TABLE IF NOT EXISTS schema_migration (
		name text PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`
	if _, err := db.Exec(table); err != nil {
		return errors.Wrap(err, "creating migration table")
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "reading migrations")
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err = applyMigration(db, name); err != nil {
			return errors.Wrapf(err, "applying migration %s", name)
		}
	}
	return nil
}

func applyMigration(db *sqlx.DB, name string) error {
	var applied bool
	err := db.Get(&applied, "SELECT EXISTS (SELECT 1 FROM schema_migration WHERE name = $1)", name)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	script, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return err
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	if _, err = tx.Exec(string(script)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err = tx.Exec("INSERT INTO schema_migration (name) VALUES ($1)", name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
