// Package memory is the in-memory claims store used by tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"shacore/internal/claims/models"
	id "shacore/pkg/domain"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
)

// Store keeps claims keyed by id with a claim-number index.
type Store struct {
	mu       sync.RWMutex
	byID     map[id.ClaimID]*models.Claim
	byNumber map[string]id.ClaimID
}

func New() *Store {
	return &Store{
		byID:     make(map[id.ClaimID]*models.Claim),
		byNumber: make(map[string]id.ClaimID),
	}
}

func cloneClaim(c *models.Claim) *models.Claim {
	cp := *c
	return &cp
}

func (s *Store) Create(_ context.Context, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byNumber[c.ClaimNumber]; ok {
		return sentinel.ErrConflict
	}
	s.byID[c.ID] = cloneClaim(c)
	s.byNumber[c.ClaimNumber] = c.ID
	return nil
}

func (s *Store) FindByID(_ context.Context, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[claimID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneClaim(c), nil
}

func (s *Store) NumberTaken(_ context.Context, claimNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byNumber[claimNumber]
	return ok, nil
}

func (s *Store) Update(_ context.Context, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[c.ID] = cloneClaim(c)
	return nil
}

func (s *Store) List(_ context.Context, filter models.ClaimFilter, params pagination.Params) (pagination.Page[models.Claim], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Claim
	for _, c := range s.byID {
		if filter.Matches(c) {
			matched = append(matched, *cloneClaim(c))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})
	return pagination.NewPage(matched, params), nil
}
