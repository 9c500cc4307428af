// Package memory is the in-memory contribution store. The (member, period)
// uniqueness check and the insert happen under one lock, mirroring the unique
// index the Postgres store relies on.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"shacore/internal/ledger/models"
	id "shacore/pkg/domain"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
)

type periodKey struct {
	member id.MemberID
	period id.Period
}

type Store struct {
	mu       sync.RWMutex
	byID     map[id.ContributionID]*models.Contribution
	byPeriod map[periodKey]id.ContributionID
}

func New() *Store {
	return &Store{
		byID:     make(map[id.ContributionID]*models.Contribution),
		byPeriod: make(map[periodKey]id.ContributionID),
	}
}

func (s *Store) Create(_ context.Context, c *models.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := periodKey{c.MemberID, c.Period}
	if _, ok := s.byPeriod[key]; ok {
		return sentinel.ErrConflict
	}
	cp := *c
	s.byID[c.ID] = &cp
	s.byPeriod[key] = c.ID
	return nil
}

func (s *Store) FindByID(_ context.Context, contributionID id.ContributionID) (*models.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[contributionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) FindByMemberAndPeriod(_ context.Context, memberID id.MemberID, period id.Period) (*models.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contributionID, ok := s.byPeriod[periodKey{memberID, period}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[contributionID]
	return &cp, nil
}

func (s *Store) Update(_ context.Context, c *models.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *c
	s.byID[c.ID] = &cp
	return nil
}

func (s *Store) ListByMember(_ context.Context, memberID id.MemberID, params pagination.Params) (pagination.Page[models.Contribution], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Contribution
	for _, c := range s.byID {
		if c.MemberID == memberID {
			matched = append(matched, *c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Period.Date().After(matched[j].Period.Date())
	})
	return pagination.NewPage(matched, params), nil
}

func (s *Store) SumByMember(_ context.Context, memberID id.MemberID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, c := range s.byID {
		if c.MemberID == memberID && c.Counted() {
			total = total.Add(c.Amount)
		}
	}
	return total, nil
}

func (s *Store) SumByPeriod(_ context.Context, period id.Period) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, c := range s.byID {
		if c.Period == period && c.Counted() {
			total = total.Add(c.Amount)
		}
	}
	return total, nil
}
