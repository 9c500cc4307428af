// Package memory holds the in-memory visit-pathway stores. The OTP consume
// and stock decrement guards run under the store mutex, replicating the
// atomic conditional updates the Postgres stores issue.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"shacore/internal/visit/models"
	id "shacore/pkg/domain"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
)

// VisitStore keeps visits keyed by id with a visit-number index.
type VisitStore struct {
	mu       sync.RWMutex
	byID     map[id.VisitID]*models.Visit
	byNumber map[string]id.VisitID
}

func NewVisitStore() *VisitStore {
	return &VisitStore{
		byID:     make(map[id.VisitID]*models.Visit),
		byNumber: make(map[string]id.VisitID),
	}
}

func (s *VisitStore) Create(_ context.Context, v *models.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byNumber[v.VisitNumber]; ok {
		return sentinel.ErrConflict
	}
	cp := *v
	s.byID[v.ID] = &cp
	s.byNumber[v.VisitNumber] = v.ID
	return nil
}

func (s *VisitStore) FindByID(_ context.Context, visitID id.VisitID) (*models.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[visitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *VisitStore) VisitNumberTaken(_ context.Context, visitNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byNumber[visitNumber]
	return ok, nil
}

func (s *VisitStore) Update(_ context.Context, v *models.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[v.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *v
	s.byID[v.ID] = &cp
	return nil
}

func (s *VisitStore) List(_ context.Context, filter models.VisitFilter, params pagination.Params) (pagination.Page[models.Visit], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Visit
	for _, v := range s.byID {
		if filter.Matches(v) {
			matched = append(matched, *v)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ScheduledAt.After(matched[j].ScheduledAt)
	})
	return pagination.NewPage(matched, params), nil
}

// OTPStore keeps codes in memory. Consume flips is_used under the lock, so
// two racing verifications cannot both win.
type OTPStore struct {
	mu   sync.Mutex
	byID map[id.OTPID]*models.OTP
}

func NewOTPStore() *OTPStore {
	return &OTPStore{byID: make(map[id.OTPID]*models.OTP)}
}

func (s *OTPStore) Create(_ context.Context, otp *models.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *otp
	s.byID[otp.ID] = &cp
	return nil
}

func (s *OTPStore) FindByCode(_ context.Context, memberID id.MemberID, code string, purpose models.OTPPurpose) (*models.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.OTP
	for _, otp := range s.byID {
		if otp.MemberID != memberID || otp.Code != code || otp.Purpose != purpose {
			continue
		}
		if latest == nil || otp.CreatedAt.After(latest.CreatedAt) {
			latest = otp
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *OTPStore) Consume(_ context.Context, otpID id.OTPID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	otp, ok := s.byID[otpID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if otp.IsUsed {
		return false, nil
	}
	otp.IsUsed = true
	otp.UsedAt = &now
	return true, nil
}

// PrescriptionStore keeps prescriptions with deep-copied item slices.
type PrescriptionStore struct {
	mu       sync.RWMutex
	byID     map[id.PrescriptionID]*models.Prescription
	byNumber map[string]id.PrescriptionID
}

func NewPrescriptionStore() *PrescriptionStore {
	return &PrescriptionStore{
		byID:     make(map[id.PrescriptionID]*models.Prescription),
		byNumber: make(map[string]id.PrescriptionID),
	}
}

func clonePrescription(p *models.Prescription) *models.Prescription {
	cp := *p
	cp.Items = make([]models.Item, len(p.Items))
	copy(cp.Items, p.Items)
	return &cp
}

func (s *PrescriptionStore) Create(_ context.Context, p *models.Prescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byNumber[p.PrescriptionNumber]; ok {
		return sentinel.ErrConflict
	}
	s.byID[p.ID] = clonePrescription(p)
	s.byNumber[p.PrescriptionNumber] = p.ID
	return nil
}

func (s *PrescriptionStore) FindByID(_ context.Context, prescriptionID id.PrescriptionID) (*models.Prescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[prescriptionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePrescription(p), nil
}

func (s *PrescriptionStore) NumberTaken(_ context.Context, prescriptionNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byNumber[prescriptionNumber]
	return ok, nil
}

func (s *PrescriptionStore) Update(_ context.Context, p *models.Prescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[p.ID] = clonePrescription(p)
	return nil
}

func (s *PrescriptionStore) ListByVisit(_ context.Context, visitID id.VisitID) ([]models.Prescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Prescription
	for _, p := range s.byID {
		if p.VisitID == visitID {
			out = append(out, *clonePrescription(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type batchKey struct {
	hospital id.HospitalID
	medicine id.MedicineID
	batch    string
}

// PharmacyStore keeps the medicine catalog and per-hospital stock. Decrement
// checks and applies under one lock, so stock never goes negative no matter
// how many dispensers race.
type PharmacyStore struct {
	mu        sync.Mutex
	medicines map[id.MedicineID]*models.Medicine
	byCode    map[string]id.MedicineID
	stocks    map[id.StockID]*models.Stock
	byBatch   map[batchKey]id.StockID
}

func NewPharmacyStore() *PharmacyStore {
	return &PharmacyStore{
		medicines: make(map[id.MedicineID]*models.Medicine),
		byCode:    make(map[string]id.MedicineID),
		stocks:    make(map[id.StockID]*models.Stock),
		byBatch:   make(map[batchKey]id.StockID),
	}
}

func (s *PharmacyStore) CreateMedicine(_ context.Context, m *models.Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[m.Code]; ok {
		return sentinel.ErrConflict
	}
	cp := *m
	s.medicines[m.ID] = &cp
	s.byCode[m.Code] = m.ID
	return nil
}

func (s *PharmacyStore) FindMedicine(_ context.Context, medicineID id.MedicineID) (*models.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medicines[medicineID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *PharmacyStore) CreateStock(_ context.Context, st *models.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := batchKey{st.HospitalID, st.MedicineID, st.BatchNumber}
	if _, ok := s.byBatch[key]; ok {
		return sentinel.ErrConflict
	}
	cp := *st
	s.stocks[st.ID] = &cp
	s.byBatch[key] = st.ID
	return nil
}

func (s *PharmacyStore) FindStock(_ context.Context, stockID id.StockID) (*models.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stocks[stockID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *PharmacyStore) Decrement(_ context.Context, stockID id.StockID, quantity int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stocks[stockID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if st.CurrentStock < quantity {
		return sentinel.ErrInsufficient
	}
	st.CurrentStock -= quantity
	st.UpdatedAt = now
	return nil
}

func (s *PharmacyStore) Increment(_ context.Context, stockID id.StockID, quantity int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stocks[stockID]
	if !ok {
		return sentinel.ErrNotFound
	}
	st.CurrentStock += quantity
	st.UpdatedAt = now
	return nil
}

func (s *PharmacyStore) ListStock(_ context.Context, hospitalID id.HospitalID) ([]models.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Stock
	for _, st := range s.stocks {
		if st.HospitalID == hospitalID {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BatchNumber < out[j].BatchNumber
	})
	return out, nil
}
