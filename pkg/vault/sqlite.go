package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBFileName is the SQLite database inside the vault directory.
const DBFileName = "vault.db"

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"

// SQLiteRepository stores rows in a local SQLite file. Writes go through a
// single connection; reads use a small pool.
type SQLiteRepository struct {
	writer *sql.DB
	reader *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, fmt.Errorf("vault: failed to create database directory: %w", err)
	}
	repo, err := OpenSQLiteDSN(ctx, fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&%s", path, sqlitePragmas))
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, FileMode); err != nil {
		repo.Close()
		return nil, fmt.Errorf("vault: failed to set database permissions: %w", err)
	}
	return repo, nil
}

// OpenSQLiteMemory opens a named shared in-memory database.
func OpenSQLiteMemory(ctx context.Context, name string) (*SQLiteRepository, error) {
	return OpenSQLiteDSN(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", name, sqlitePragmas))
}

// OpenSQLiteDSN opens a database from a modernc DSN and migrates it.
func OpenSQLiteDSN(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to open database: %w", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(ctx); err != nil {
		writer.Close()
		return nil, fmt.Errorf("vault: failed to open database: %w", err)
	}

	if err := migrateSchema(ctx, writer); err != nil {
		writer.Close()
		return nil, err
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("vault: failed to open database reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	return &SQLiteRepository{writer: writer, reader: reader}, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, row Row) error {
	_, err := r.writer.ExecContext(ctx, `
		INSERT INTO credentials (id, owner, title, username, encrypted_secret, url, encrypted_notes,
			category, favorite, strength_score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Owner, row.Title, row.Username, row.Secret, row.URL, row.Notes,
		row.Category, row.Favorite, row.StrengthScore, formatTime(row.CreatedAt), formatTime(row.UpdatedAt))
	if err != nil {
		return fmt.Errorf("vault: failed to insert credential: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, row Row) error {
	res, err := r.writer.ExecContext(ctx, `
		UPDATE credentials
		SET title = ?, username = ?, encrypted_secret = ?, url = ?, encrypted_notes = ?,
			category = ?, favorite = ?, strength_score = ?, updated_at = ?
		WHERE id = ?`,
		row.Title, row.Username, row.Secret, row.URL, row.Notes,
		row.Category, row.Favorite, row.StrengthScore, formatTime(row.UpdatedAt), row.ID)
	if err != nil {
		return fmt.Errorf("vault: failed to update credential: %w", err)
	}
	return expectAffected(res)
}

const sqliteColumns = `id, owner, title, username, encrypted_secret, url, encrypted_notes,
	category, favorite, strength_score, created_at, updated_at`

func (r *SQLiteRepository) Get(ctx context.Context, id string) (Row, error) {
	row, err := scanSQLiteRow(r.reader.QueryRowContext(ctx,
		"SELECT "+sqliteColumns+" FROM credentials WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	return row, err
}

func (r *SQLiteRepository) List(ctx context.Context, owner string) ([]Row, error) {
	rows, err := r.reader.QueryContext(ctx,
		"SELECT "+sqliteColumns+" FROM credentials WHERE owner = ? ORDER BY title, id", owner)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to list credentials: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanSQLiteRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vault: failed to iterate credentials: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.writer.ExecContext(ctx, "DELETE FROM credentials WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("vault: failed to delete credential: %w", err)
	}
	return expectAffected(res)
}

// Close closes both connections and returns the first error.
func (r *SQLiteRepository) Close() error {
	var firstErr error
	if err := r.reader.Close(); err != nil {
		firstErr = fmt.Errorf("vault: close reader: %w", err)
	}
	if err := r.writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("vault: close writer: %w", err)
	}
	return firstErr
}

// RawSecret returns the stored secret blob for id.
func (r *SQLiteRepository) RawSecret(ctx context.Context, id string) ([]byte, error) {
	var blob []byte
	err := r.reader.QueryRowContext(ctx, "SELECT encrypted_secret FROM credentials WHERE id = ?", id).Scan(&blob)
	return blob, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRow(s rowScanner) (Row, error) {
	var row Row
	var created, updated string
	err := s.Scan(&row.ID, &row.Owner, &row.Title, &row.Username, &row.Secret, &row.URL, &row.Notes,
		&row.Category, &row.Favorite, &row.StrengthScore, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Row{}, err
		}
		return Row{}, fmt.Errorf("vault: failed to scan credential: %w", err)
	}
	if row.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Row{}, fmt.Errorf("%w: bad created_at for %s", ErrVaultCorrupted, row.ID)
	}
	if row.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Row{}, fmt.Errorf("%w: bad updated_at for %s", ErrVaultCorrupted, row.ID)
	}
	return row, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("vault: failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
