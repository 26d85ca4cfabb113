// Package memory implements store.Store with in-process maps. It is the
// default driver and the double used throughout the test suite.
package memory

import (
	"context"
	"sync"

	"github.com/secureauth-ai/sentinel/internal/store"
)

type table struct {
	mu      sync.RWMutex
	columns []string
	rows    map[int64]*store.Record
	order   []int64
	nextID  int64
}

type Store struct {
	mu      sync.RWMutex
	tenants map[string]*table
}

func New() *Store {
	return &Store{tenants: make(map[string]*table)}
}

func (s *Store) CreateTenant(_ context.Context, token string, customColumns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &table{
		columns: append([]string(nil), customColumns...),
		rows:    make(map[int64]*store.Record),
		nextID:  1,
	}
	s.tenants[token] = t
	return nil
}

func (s *Store) tenant(token string) (*table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[token]
	if !ok {
		return nil, store.ErrUnknownTenant
	}
	return t, nil
}

func (s *Store) AddColumn(_ context.Context, token, name string) error {
	t, err := s.tenant(token)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.columns {
		if c == name {
			return store.ErrDuplicateColumn
		}
	}
	t.columns = append(t.columns, name)
	for _, rec := range t.rows {
		rec.Custom[name] = ""
	}
	return nil
}

func (s *Store) RemoveColumn(_ context.Context, token, name string) error {
	t, err := s.tenant(token)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i, c := range t.columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return store.ErrUnknownColumn
	}
	t.columns = append(t.columns[:idx], t.columns[idx+1:]...)
	for _, rec := range t.rows {
		delete(rec.Custom, name)
	}
	return nil
}

func (s *Store) CustomColumns(_ context.Context, token string) ([]string, error) {
	t, err := s.tenant(token)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.columns...), nil
}

func (s *Store) Insert(_ context.Context, token string, rec *store.Record) (int64, error) {
	t, err := s.tenant(token)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkColumns(rec.Custom); err != nil {
		return 0, err
	}

	cp := rec.Clone()
	cp.ID = t.nextID
	t.nextID++

	// Undeclared columns default to the empty string.
	for _, c := range t.columns {
		if _, ok := cp.Custom[c]; !ok {
			cp.Custom[c] = ""
		}
	}

	t.rows[cp.ID] = cp
	t.order = append(t.order, cp.ID)
	return cp.ID, nil
}

func (t *table) checkColumns(custom map[string]string) error {
	for name := range custom {
		found := false
		for _, c := range t.columns {
			if c == name {
				found = true
				break
			}
		}
		if !found {
			return store.ErrUnknownColumn
		}
	}
	return nil
}

func (t *table) findLocked(column, value string) (*store.Record, error) {
	known := false
	for _, c := range t.columns {
		if c == column {
			known = true
			break
		}
	}
	if !known {
		return nil, store.ErrUnknownColumn
	}

	// First match in insertion order; uniqueness is enforced upstream.
	for _, id := range t.order {
		if rec, ok := t.rows[id]; ok && rec.Custom[column] == value {
			return rec, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindByColumn(_ context.Context, token, column, value string) (*store.Record, error) {
	t, err := s.tenant(token)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, err := t.findLocked(column, value)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *Store) FindByID(_ context.Context, token string, id int64) (*store.Record, error) {
	t, err := s.tenant(token)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) All(_ context.Context, token string) ([]*store.Record, error) {
	t, err := s.tenant(token)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*store.Record, 0, len(t.order))
	for _, id := range t.order {
		if rec, ok := t.rows[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, token string, rec *store.Record) error {
	t, err := s.tenant(token)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[rec.ID]; !ok {
		return store.ErrNotFound
	}
	if err := t.checkColumns(rec.Custom); err != nil {
		return err
	}
	t.rows[rec.ID] = rec.Clone()
	return nil
}

func (s *Store) Delete(_ context.Context, token, column, value string) error {
	t, err := s.tenant(token)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.findLocked(column, value)
	if err != nil {
		return err
	}
	delete(t.rows, rec.ID)
	for i, id := range t.order {
		if id == rec.ID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}
