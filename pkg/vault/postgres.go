package vault

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var postgresMigrations embed.FS

// PostgresRepository stores rows in PostgreSQL, standing in for a hosted table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, applies pending migrations and returns the repository.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	if err := MigratePostgres(ctx, dsn); err != nil {
		return nil, err
	}

	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to open connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vault: failed to reach postgres: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

// MigratePostgres applies the embedded goose migrations.
func MigratePostgres(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("vault: failed to open postgres: %w", err)
	}
	defer db.Close()

	migrations, err := fs.Sub(postgresMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("vault: failed to load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return fmt.Errorf("vault: failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("vault: failed to apply migrations: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, row Row) error {
	const query = `
		INSERT INTO credentials (id, owner, title, username, encrypted_secret, url, encrypted_notes,
			category, favorite, strength_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.pool.Exec(ctx, query,
		row.ID, row.Owner, row.Title, row.Username, row.Secret, row.URL, row.Notes,
		row.Category, row.Favorite, row.StrengthScore, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("vault: failed to insert credential: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, row Row) error {
	const query = `
		UPDATE credentials
		SET title = $2, username = $3, encrypted_secret = $4, url = $5, encrypted_notes = $6,
			category = $7, favorite = $8, strength_score = $9, updated_at = $10
		WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query,
		row.ID, row.Title, row.Username, row.Secret, row.URL, row.Notes,
		row.Category, row.Favorite, row.StrengthScore, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("vault: failed to update credential: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const postgresColumns = `id::text, owner, title, username, encrypted_secret, url, encrypted_notes,
	category, favorite, strength_score, created_at, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, id string) (Row, error) {
	if !isUUID(id) {
		return Row{}, ErrNotFound
	}
	row, err := scanPostgresRow(r.pool.QueryRow(ctx,
		"SELECT "+postgresColumns+" FROM credentials WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, fmt.Errorf("vault: failed to get credential: %w", err)
	}
	return row, nil
}

func (r *PostgresRepository) List(ctx context.Context, owner string) ([]Row, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+postgresColumns+" FROM credentials WHERE owner = $1 ORDER BY title, id", owner)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to list credentials: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanPostgresRow(rows)
		if err != nil {
			return nil, fmt.Errorf("vault: failed to scan credential: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vault: failed to iterate credentials: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, "DELETE FROM credentials WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("vault: failed to delete credential: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanPostgresRow(s pgx.Row) (Row, error) {
	var row Row
	var score int16
	err := s.Scan(&row.ID, &row.Owner, &row.Title, &row.Username, &row.Secret, &row.URL, &row.Notes,
		&row.Category, &row.Favorite, &score, &row.CreatedAt, &row.UpdatedAt)
	row.StrengthScore = int(score)
	return row, err
}

func isUUID(id string) bool {
	return uuid.Validate(id) == nil
}
