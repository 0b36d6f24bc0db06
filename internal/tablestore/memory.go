package tablestore

import (
	"context"
	"sync"
)

// MemoryStore keeps tables in process memory. Loaded tables are copies, so
// callers never alias the stored state.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]*Table
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*Table)}
}

// LoadTable returns a copy of the named table
func (s *MemoryStore) LoadTable(_ context.Context, name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return &Table{}, nil
	}
	return t.Clone(), nil
}

// SaveTable replaces the named table with a copy of table
func (s *MemoryStore) SaveTable(_ context.Context, name string, table *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = table.Clone()
	return nil
}
