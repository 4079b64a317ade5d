// Package vault is the credential store facade.
//
// Every write goes through Vault, which derives the strength score from the
// secret, seals the secret and notes with the session key, writes the row
// through a Repository backend and notifies subscribers. Backends never see
// plaintext secrets and never compute scores.
package vault

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forest6511/quantavault/pkg/crypto"
	"github.com/forest6511/quantavault/pkg/strength"
)

// Journal operation names.
const (
	JournalGet    = "credential.get"
	JournalCreate = "credential.create"
	JournalUpdate = "credential.update"
	JournalDelete = "credential.delete"
	JournalList   = "credential.list"
	JournalImport = "credential.import"
)

// Recorder receives an entry for every facade operation.
// Recording failures are logged and never fail the operation.
type Recorder interface {
	LogSuccess(op, source, key string) error
	LogError(op, source, key, errCode, errMsg string) error
}

// Vault manages credential records for any number of owners.
type Vault struct {
	repo    Repository
	sealer  *crypto.Sealer
	journal Recorder
	source  string
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	subMu sync.Mutex
	subs  map[*subscriber]struct{}
}

// Option configures a Vault.
type Option func(*Vault)

// WithRecorder journals every operation to r under the given source label (cli, api, mcp).
func WithRecorder(r Recorder, source string) Option {
	return func(v *Vault) {
		v.journal = r
		v.source = source
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) { v.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// New returns a Vault writing through repo and sealing with sealer.
func New(repo Repository, sealer *crypto.Sealer, opts ...Option) *Vault {
	v := &Vault{
		repo:   repo,
		sealer: sealer,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		subs:   make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Close releases the backend.
func (v *Vault) Close() error {
	return v.repo.Close()
}

// List returns every credential owned by owner, ordered by title.
func (v *Vault) List(ctx context.Context, owner string) ([]Credential, error) {
	rows, err := v.repo.List(ctx, owner)
	if err != nil {
		v.record(JournalList, "", err)
		return nil, storeErr(OpList, "", err)
	}

	creds := make([]Credential, 0, len(rows))
	for _, row := range rows {
		c, err := v.open(row)
		if err != nil {
			v.record(JournalList, "", err)
			return nil, storeErr(OpList, row.ID, err)
		}
		creds = append(creds, c)
	}
	v.record(JournalList, "", nil)
	return creds, nil
}

// Get returns a single credential. Every read, found or not, is journaled.
func (v *Vault) Get(ctx context.Context, id string) (Credential, error) {
	c, err := v.load(ctx, OpGet, id)
	v.record(JournalGet, id, err)
	return c, err
}

func (v *Vault) load(ctx context.Context, op, id string) (Credential, error) {
	row, err := v.repo.Get(ctx, id)
	if err != nil {
		return Credential{}, storeErr(op, id, err)
	}
	c, err := v.open(row)
	if err != nil {
		return Credential{}, storeErr(op, id, err)
	}
	return c, nil
}

// Create validates d, assigns an ID, timestamps and strength score, and stores it.
func (v *Vault) Create(ctx context.Context, d Draft) (Credential, error) {
	d = d.normalize()
	now := v.now().UTC()
	c := Credential{
		ID:        v.newID(),
		Owner:     d.Owner,
		Title:     d.Title,
		Username:  d.Username,
		Secret:    d.Secret,
		URL:       d.URL,
		Notes:     d.Notes,
		Category:  d.Category,
		Favorite:  d.Favorite,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validate(c); err != nil {
		return Credential{}, storeErr(OpCreate, "", err)
	}
	c.StrengthScore = strength.Score(c.Secret)

	row, err := v.seal(c)
	if err != nil {
		return Credential{}, storeErr(OpCreate, "", err)
	}
	if err := v.repo.Insert(ctx, row); err != nil {
		v.record(JournalCreate, c.ID, err)
		return Credential{}, storeErr(OpCreate, c.ID, err)
	}

	v.record(JournalCreate, c.ID, nil)
	v.publish(Event{Kind: EventSaved, ID: c.ID, Owner: c.Owner, At: now})
	return c, nil
}

// Update applies p to the credential. When p changes the secret, the score is
// recomputed and persisted in the same write.
func (v *Vault) Update(ctx context.Context, id string, p Patch) (Credential, error) {
	return v.modify(ctx, OpUpdate, id, func(c Credential) Credential { return p.apply(c) })
}

// ToggleFavorite flips the favorite flag.
func (v *Vault) ToggleFavorite(ctx context.Context, id string) (Credential, error) {
	return v.modify(ctx, OpFavorite, id, func(c Credential) Credential {
		c.Favorite = !c.Favorite
		return c
	})
}

func (v *Vault) modify(ctx context.Context, op, id string, change func(Credential) Credential) (Credential, error) {
	current, err := v.load(ctx, op, id)
	if err != nil {
		return Credential{}, err
	}

	c := change(current)
	c.ID, c.Owner, c.CreatedAt = current.ID, current.Owner, current.CreatedAt
	c.UpdatedAt = v.now().UTC()
	if err := validate(c); err != nil {
		return Credential{}, storeErr(op, id, err)
	}
	c.StrengthScore = strength.Score(c.Secret)

	row, err := v.seal(c)
	if err != nil {
		return Credential{}, storeErr(op, id, err)
	}
	if err := v.repo.Update(ctx, row); err != nil {
		v.record(JournalUpdate, id, err)
		return Credential{}, storeErr(op, id, err)
	}

	v.record(JournalUpdate, id, nil)
	v.publish(Event{Kind: EventSaved, ID: id, Owner: c.Owner, At: c.UpdatedAt})
	return c, nil
}

// Delete removes a credential.
func (v *Vault) Delete(ctx context.Context, id string) error {
	row, err := v.repo.Get(ctx, id)
	if err != nil {
		return storeErr(OpDelete, id, err)
	}
	if err := v.repo.Delete(ctx, id); err != nil {
		v.record(JournalDelete, id, err)
		return storeErr(OpDelete, id, err)
	}

	v.record(JournalDelete, id, nil)
	v.publish(Event{Kind: EventDeleted, ID: id, Owner: row.Owner, At: v.now().UTC()})
	return nil
}

// ImportSummary counts the outcome of ImportAll.
type ImportSummary struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
	IDs      []string `json:"ids,omitempty"`
}

// ImportAll creates each draft in order through Create. A failing draft is
// counted and skipped; the remaining drafts are still attempted. Cancelling
// ctx stops the import early.
func (v *Vault) ImportAll(ctx context.Context, drafts []Draft) ImportSummary {
	var sum ImportSummary
	for i, d := range drafts {
		if err := ctx.Err(); err != nil {
			sum.Failed += len(drafts) - i
			sum.Errors = append(sum.Errors, err.Error())
			break
		}
		c, err := v.Create(ctx, d)
		if err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, err.Error())
			continue
		}
		sum.Imported++
		sum.IDs = append(sum.IDs, c.ID)
	}
	v.record(JournalImport, "", nil)
	return sum
}

// seal converts a credential into a backend row.
func (v *Vault) seal(c Credential) (Row, error) {
	secret, err := v.sealer.SealString(c.Secret)
	if err != nil {
		return Row{}, err
	}
	notes, err := v.sealer.SealString(c.Notes)
	if err != nil {
		return Row{}, err
	}
	return Row{
		ID:            c.ID,
		Owner:         c.Owner,
		Title:         c.Title,
		Username:      c.Username,
		Secret:        secret,
		URL:           c.URL,
		Notes:         notes,
		Category:      string(c.Category),
		Favorite:      c.Favorite,
		StrengthScore: c.StrengthScore,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}, nil
}

// open converts a backend row into a credential.
func (v *Vault) open(row Row) (Credential, error) {
	secret, err := v.sealer.OpenString(row.Secret)
	if err != nil {
		return Credential{}, err
	}
	notes, err := v.sealer.OpenString(row.Notes)
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		ID:            row.ID,
		Owner:         row.Owner,
		Title:         row.Title,
		Username:      row.Username,
		Secret:        secret,
		URL:           row.URL,
		Notes:         notes,
		Category:      Category(row.Category),
		Favorite:      row.Favorite,
		StrengthScore: row.StrengthScore,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}, nil
}

func (v *Vault) record(op, id string, opErr error) {
	if v.journal == nil {
		return
	}
	var err error
	if opErr != nil {
		err = v.journal.LogError(op, v.source, id, errorCode(opErr), opErr.Error())
	} else {
		err = v.journal.LogSuccess(op, v.source, id)
	}
	if err != nil {
		v.logger.Warn("failed to write journal entry", "op", op, "error", err)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidCredential):
		return "INVALID"
	case errors.Is(err, crypto.ErrDecryptionFailed):
		return "DECRYPT_FAILED"
	default:
		return "STORE_ERROR"
	}
}
