package vault

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepository keeps rows in a map. It backs tests and ephemeral servers.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]Row
}

// NewMemoryRepository returns an empty in-memory backend.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]Row)}
}

func (m *MemoryRepository) Insert(ctx context.Context, row Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[row.ID]; ok {
		return fmt.Errorf("vault: duplicate credential id %s", row.ID)
	}
	m.rows[row.ID] = cloneRow(row)
	return nil
}

func (m *MemoryRepository) Update(ctx context.Context, row Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[row.ID]; !ok {
		return ErrNotFound
	}
	m.rows[row.ID] = cloneRow(row)
	return nil
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[id]
	if !ok {
		return Row{}, ErrNotFound
	}
	return cloneRow(row), nil
}

func (m *MemoryRepository) List(ctx context.Context, owner string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Row
	for _, row := range m.rows {
		if row.Owner == owner {
			out = append(out, cloneRow(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *MemoryRepository) Close() error { return nil }

// RawSecret returns the stored secret blob. Tests use it to check sealing.
func (m *MemoryRepository) RawSecret(id string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bytes.Clone(m.rows[id].Secret)
}

func cloneRow(r Row) Row {
	r.Secret = bytes.Clone(r.Secret)
	r.Notes = bytes.Clone(r.Notes)
	return r
}
