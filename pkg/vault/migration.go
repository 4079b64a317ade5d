package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLite schema versions.
const (
	// SchemaVersion1 creates the credentials table.
	SchemaVersion1 = 1
	// SchemaVersion2 adds the owner/title index used by List.
	SchemaVersion2 = 2
	// CurrentSchemaVersion is the schema this build writes.
	CurrentSchemaVersion = SchemaVersion2
)

// getSchemaVersion returns the stored schema version, or 0 for an empty database.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var name string
	err := db.QueryRowContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("vault: failed to check schema_version table: %w", err)
	}

	var version int
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("vault: failed to get schema version: %w", err)
	}
	return version, nil
}

func setSchemaVersion(ctx context.Context, tx *sql.Tx, version int) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			migrated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("vault: failed to create schema_version table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("vault: failed to set schema version: %w", err)
	}
	return nil
}

// migrateSchema brings the database up to CurrentSchemaVersion.
func migrateSchema(ctx context.Context, db *sql.DB) error {
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("vault: database schema v%d is newer than supported v%d", version, CurrentSchemaVersion)
	}

	steps := []struct {
		version int
		stmts   []string
	}{
		{SchemaVersion1, []string{`
			CREATE TABLE IF NOT EXISTS credentials (
				id TEXT PRIMARY KEY,
				owner TEXT NOT NULL,
				title TEXT NOT NULL,
				username TEXT NOT NULL,
				encrypted_secret BLOB NOT NULL,
				url TEXT NOT NULL DEFAULT '',
				encrypted_notes BLOB,
				category TEXT NOT NULL DEFAULT 'personal',
				favorite INTEGER NOT NULL DEFAULT 0,
				strength_score INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		}},
		{SchemaVersion2, []string{
			`CREATE INDEX IF NOT EXISTS idx_credentials_owner_title ON credentials(owner, title, id)`,
		}},
	}

	for _, step := range steps {
		if version >= step.version {
			continue
		}
		if err := applyMigration(ctx, db, step.version, step.stmts); err != nil {
			return fmt.Errorf("vault: migration to v%d failed: %w", step.version, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, stmts []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if err := setSchemaVersion(ctx, tx, version); err != nil {
		return err
	}
	return tx.Commit()
}
