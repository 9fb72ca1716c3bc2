package db

import (
	"fmt"
	"log/slog"
)

// RunMigrations applies any pending database migrations
func (db *DB) RunMigrations() error {
	if err := db.runCreatedAtMigration(); err != nil {
		return err
	}

	if _, err := db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos (created_at)`); err != nil {
		return fmt.Errorf("creating created_at index: %w", err)
	}

	return nil
}

// runCreatedAtMigration adds the sort key to tables written before it
// existed. Old rows are ordered by insertion (rowid).
func (db *DB) runCreatedAtMigration() error {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*)
		FROM pragma_table_info('todos')
		WHERE name = 'created_at'
	`).Scan(&count)

	if err != nil {
		return fmt.Errorf("checking for created_at column: %w", err)
	}

	if count > 0 {
		return nil
	}

	slog.Info("running migration: adding created_at column")

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`ALTER TABLE todos ADD COLUMN created_at INTEGER`)
	if err != nil && err.Error() != "duplicate column name: created_at" {
		return fmt.Errorf("adding created_at column: %w", err)
	}

	if _, err := tx.Exec(`UPDATE todos SET created_at = rowid WHERE created_at IS NULL`); err != nil {
		return fmt.Errorf("backfilling created_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	slog.Info("migration completed successfully")
	return nil
}
