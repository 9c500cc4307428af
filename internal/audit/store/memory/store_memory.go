package memory

import (
	"context"
	"sync"

	"shacore/internal/audit"
	"shacore/pkg/pagination"
)

// Store keeps audit entries in memory. Append-only by construction: the
// slice is only ever extended and List returns copies.
type Store struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *Store) List(_ context.Context, filter audit.Filter, params pagination.Params) (pagination.Page[audit.Entry], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Entry
	// Newest first, matching the SQL store's ORDER BY timestamp DESC.
	for i := len(s.entries) - 1; i >= 0; i-- {
		if filter.Matches(s.entries[i]) {
			matched = append(matched, s.entries[i])
		}
	}
	return pagination.NewPage(matched, params), nil
}
