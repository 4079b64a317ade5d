package vault

import (
	"context"
	"time"
)

// Row is a credential as a backend stores it. Secret and Notes are sealed
// blobs; every other column is plaintext so backends can filter and sort.
type Row struct {
	ID            string
	Owner         string
	Title         string
	Username      string
	Secret        []byte
	URL           string
	Notes         []byte
	Category      string
	Favorite      bool
	StrengthScore int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository persists rows. Implementations must be safe for concurrent use.
// Get, Update and Delete return ErrNotFound for unknown IDs.
type Repository interface {
	Insert(ctx context.Context, row Row) error
	Update(ctx context.Context, row Row) error
	Get(ctx context.Context, id string) (Row, error)
	// List returns the owner's rows ordered by title, then ID.
	List(ctx context.Context, owner string) ([]Row, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
