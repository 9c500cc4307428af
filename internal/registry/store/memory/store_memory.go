// Package memory holds the in-memory registry stores used in tests and when
// the server runs without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"

	"shacore/internal/registry/models"
	id "shacore/pkg/domain"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
)

// MemberStore keeps members in maps keyed by id, with uniqueness indexes on
// national ID and SHA number.
type MemberStore struct {
	mu          sync.RWMutex
	byID        map[id.MemberID]*models.Member
	byNational  map[string]id.MemberID
	bySHANumber map[string]id.MemberID
}

func NewMemberStore() *MemberStore {
	return &MemberStore{
		byID:        make(map[id.MemberID]*models.Member),
		byNational:  make(map[string]id.MemberID),
		bySHANumber: make(map[string]id.MemberID),
	}
}

func (s *MemberStore) Create(_ context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byNational[m.NationalID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.bySHANumber[m.SHANumber]; ok {
		return sentinel.ErrConflict
	}
	cp := *m
	s.byID[m.ID] = &cp
	s.byNational[m.NationalID] = m.ID
	s.bySHANumber[m.SHANumber] = m.ID
	return nil
}

func (s *MemberStore) FindByID(_ context.Context, memberID id.MemberID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemberStore) FindBySHANumber(_ context.Context, shaNumber string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	memberID, ok := s.bySHANumber[shaNumber]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[memberID]
	return &cp, nil
}

func (s *MemberStore) SHANumberTaken(_ context.Context, shaNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bySHANumber[shaNumber]
	return ok, nil
}

func (s *MemberStore) Update(_ context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *m
	s.byID[m.ID] = &cp
	return nil
}

func (s *MemberStore) List(_ context.Context, filter models.MemberFilter, params pagination.Params) (pagination.Page[models.Member], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]models.Member, 0, len(s.byID))
	for _, m := range s.byID {
		if filter.Matches(m) {
			matched = append(matched, *m)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RegisteredAt.After(matched[j].RegisteredAt)
	})
	return pagination.NewPage(matched, params), nil
}

type employmentKey struct {
	employer id.EmployerID
	member   id.MemberID
}

// EmployerStore keeps employers and their employment links.
type EmployerStore struct {
	mu          sync.RWMutex
	byID        map[id.EmployerID]*models.Employer
	byRegNumber map[string]id.EmployerID
	employments map[employmentKey]*models.Employment
}

func NewEmployerStore() *EmployerStore {
	return &EmployerStore{
		byID:        make(map[id.EmployerID]*models.Employer),
		byRegNumber: make(map[string]id.EmployerID),
		employments: make(map[employmentKey]*models.Employment),
	}
}

func (s *EmployerStore) Create(_ context.Context, e *models.Employer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byRegNumber[e.RegistrationNumber]; ok {
		return sentinel.ErrConflict
	}
	cp := *e
	s.byID[e.ID] = &cp
	s.byRegNumber[e.RegistrationNumber] = e.ID
	return nil
}

func (s *EmployerStore) FindByID(_ context.Context, employerID id.EmployerID) (*models.Employer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[employerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *EmployerStore) Update(_ context.Context, e *models.Employer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[e.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *e
	s.byID[e.ID] = &cp
	return nil
}

func (s *EmployerStore) List(_ context.Context, status models.Status, params pagination.Params) (pagination.Page[models.Employer], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]models.Employer, 0, len(s.byID))
	for _, e := range s.byID {
		if status != "" && e.Status != status {
			continue
		}
		matched = append(matched, *e)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RegisteredAt.After(matched[j].RegisteredAt)
	})
	return pagination.NewPage(matched, params), nil
}

func (s *EmployerStore) LinkEmployment(_ context.Context, emp *models.Employment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := employmentKey{emp.EmployerID, emp.MemberID}
	if _, ok := s.employments[key]; ok {
		return sentinel.ErrConflict
	}
	cp := *emp
	s.employments[key] = &cp
	return nil
}

func (s *EmployerStore) FindEmployment(_ context.Context, employerID id.EmployerID, memberID id.MemberID) (*models.Employment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emp, ok := s.employments[employmentKey{employerID, memberID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *emp
	return &cp, nil
}

func (s *EmployerStore) UpdateEmployment(_ context.Context, emp *models.Employment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := employmentKey{emp.EmployerID, emp.MemberID}
	if _, ok := s.employments[key]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *emp
	s.employments[key] = &cp
	return nil
}

func (s *EmployerStore) ListEmployments(_ context.Context, employerID id.EmployerID) ([]models.Employment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Employment
	for key, emp := range s.employments {
		if key.employer == employerID {
			out = append(out, *emp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DateJoined.Before(out[j].DateJoined)
	})
	return out, nil
}

// HospitalStore keeps hospitals and their staff.
type HospitalStore struct {
	mu          sync.RWMutex
	byID        map[id.HospitalID]*models.Hospital
	byRegNumber map[string]id.HospitalID
	staff       map[id.StaffID]*models.Staff
	byStaffNum  map[string]id.StaffID
}

func NewHospitalStore() *HospitalStore {
	return &HospitalStore{
		byID:        make(map[id.HospitalID]*models.Hospital),
		byRegNumber: make(map[string]id.HospitalID),
		staff:       make(map[id.StaffID]*models.Staff),
		byStaffNum:  make(map[string]id.StaffID),
	}
}

func (s *HospitalStore) Create(_ context.Context, h *models.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byRegNumber[h.RegistrationNumber]; ok {
		return sentinel.ErrConflict
	}
	cp := *h
	s.byID[h.ID] = &cp
	s.byRegNumber[h.RegistrationNumber] = h.ID
	return nil
}

func (s *HospitalStore) FindByID(_ context.Context, hospitalID id.HospitalID) (*models.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byID[hospitalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *HospitalStore) Update(_ context.Context, h *models.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[h.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *h
	s.byID[h.ID] = &cp
	return nil
}

func (s *HospitalStore) List(_ context.Context, filter models.HospitalFilter, params pagination.Params) (pagination.Page[models.Hospital], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]models.Hospital, 0, len(s.byID))
	for _, h := range s.byID {
		if filter.Matches(h) {
			matched = append(matched, *h)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RegisteredAt.After(matched[j].RegisteredAt)
	})
	return pagination.NewPage(matched, params), nil
}

func (s *HospitalStore) AddStaff(_ context.Context, st *models.Staff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.StaffNumber != "" {
		if _, ok := s.byStaffNum[st.StaffNumber]; ok {
			return sentinel.ErrConflict
		}
		s.byStaffNum[st.StaffNumber] = st.ID
	}
	cp := *st
	s.staff[st.ID] = &cp
	return nil
}

func (s *HospitalStore) FindStaff(_ context.Context, staffID id.StaffID) (*models.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.staff[staffID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *HospitalStore) ListStaff(_ context.Context, hospitalID id.HospitalID) ([]models.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Staff
	for _, st := range s.staff {
		if st.HospitalID == hospitalID {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DateJoined.Before(out[j].DateJoined)
	})
	return out, nil
}
