// Package handler exposes the visit pathway over HTTP: scheduling, OTP
// check-in, consultations, prescriptions and the pharmacy.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shacore/internal/visit/models"
	"shacore/internal/visit/service"
	id "shacore/pkg/domain"
	dErrors "shacore/pkg/domain-errors"
	"shacore/pkg/platform/httputil"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/visits", func(r chi.Router) {
		r.Post("/", h.schedule)
		r.Get("/", h.list)
		r.Get("/{visitID}", h.get)
		r.Post("/{visitID}/check-in", h.checkIn)
		r.Post("/{visitID}/start-consultation", h.startConsultation)
		r.Post("/{visitID}/complete", h.complete)
		r.Post("/{visitID}/cancel", h.cancel)
		r.Get("/{visitID}/prescriptions", h.listPrescriptions)
	})
	r.Post("/otps", h.issueOTP)
	r.Route("/prescriptions", func(r chi.Router) {
		r.Post("/", h.createPrescription)
		r.Get("/{prescriptionID}", h.getPrescription)
		r.Post("/{prescriptionID}/dispense", h.dispense)
		r.Post("/{prescriptionID}/verify-collection", h.verifyCollection)
	})
	r.Post("/medicines", h.addMedicine)
	r.Route("/stock", func(r chi.Router) {
		r.Post("/", h.addStock)
		r.Get("/", h.listStock)
		r.Post("/{stockID}/restock", h.restock)
	})
}

// ---- visits ----

type scheduleRequest struct {
	MemberID       string `json:"member_id"`
	HospitalID     string `json:"hospital_id"`
	Type           string `json:"type"`
	ScheduledAt    string `json:"scheduled_at,omitempty"`
	ChiefComplaint string `json:"chief_complaint"`
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[scheduleRequest](w, r)
	if !ok {
		return
	}
	memberID, err := httputil.ParseUUID(req.MemberID, "member_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hospitalID, err := httputil.ParseUUID(req.HospitalID, "hospital_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var scheduledAt time.Time
	if req.ScheduledAt != "" {
		if scheduledAt, err = time.Parse(time.RFC3339, req.ScheduledAt); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "scheduled_at must be RFC 3339"))
			return
		}
	}
	v, err := h.service.ScheduleVisit(r.Context(), service.ScheduleVisitInput{
		MemberID:       id.MemberID(memberID),
		HospitalID:     id.HospitalID(hospitalID),
		Type:           models.VisitType(req.Type),
		ScheduledAt:    scheduledAt,
		ChiefComplaint: req.ChiefComplaint,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	visitID, err := httputil.PathUUID(r, "visitID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.GetVisit(r.Context(), id.VisitID(visitID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter models.VisitFilter
	if raw := q.Get("member_id"); raw != "" {
		memberID, err := httputil.ParseUUID(raw, "member_id")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.MemberID = id.MemberID(memberID)
	}
	if raw := q.Get("hospital_id"); raw != "" {
		hospitalID, err := httputil.ParseUUID(raw, "hospital_id")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.HospitalID = id.HospitalID(hospitalID)
	}
	filter.Status = models.VisitStatus(q.Get("status"))
	page, err := h.service.ListVisits(r.Context(), filter, httputil.PageParams(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

type issueOTPRequest struct {
	MemberID string `json:"member_id"`
	Purpose  string `json:"purpose"`
}

// issueOTP issues a code; the code itself only travels by SMS, the response
// carries the OTP record without it.
func (h *Handler) issueOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[issueOTPRequest](w, r)
	if !ok {
		return
	}
	memberID, err := httputil.ParseUUID(req.MemberID, "member_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	otp, err := h.service.IssueOTP(r.Context(), id.MemberID(memberID), models.OTPPurpose(req.Purpose))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, otp)
}

type otpRequest struct {
	Code string `json:"code"`
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	visitID, err := httputil.PathUUID(r, "visitID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[otpRequest](w, r)
	if !ok {
		return
	}
	v, err := h.service.CheckIn(r.Context(), id.VisitID(visitID), req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

type startConsultationRequest struct {
	StaffID string `json:"staff_id"`
}

func (h *Handler) startConsultation(w http.ResponseWriter, r *http.Request) {
	visitID, err := httputil.PathUUID(r, "visitID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[startConsultationRequest](w, r)
	if !ok {
		return
	}
	staffID, err := httputil.ParseUUID(req.StaffID, "staff_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.StartConsultation(r.Context(), id.VisitID(visitID), id.StaffID(staffID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

type completeRequest struct {
	Diagnosis string `json:"diagnosis"`
	Notes     string `json:"notes"`
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	visitID, err := httputil.PathUUID(r, "visitID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[completeRequest](w, r)
	if !ok {
		return
	}
	v, err := h.service.Complete(r.Context(), service.CompleteVisitInput{
		VisitID:   id.VisitID(visitID),
		Diagnosis: req.Diagnosis,
		Notes:     req.Notes,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	visitID, err := httputil.PathUUID(r, "visitID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[cancelRequest](w, r)
	if !ok {
		return
	}
	v, err := h.service.Cancel(r.Context(), id.VisitID(visitID), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

// ---- prescriptions ----

type prescriptionItemRequest struct {
	MedicineID string `json:"medicine_id"`
	Quantity   int    `json:"quantity"`
	Dosage     string `json:"dosage"`
	Duration   string `json:"duration"`
}

type createPrescriptionRequest struct {
	VisitID      string                    `json:"visit_id"`
	PrescribedBy string                    `json:"prescribed_by,omitempty"`
	Items        []prescriptionItemRequest `json:"items"`
	Notes        string                    `json:"notes"`
}

func (h *Handler) createPrescription(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[createPrescriptionRequest](w, r)
	if !ok {
		return
	}
	visitID, err := httputil.ParseUUID(req.VisitID, "visit_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	in := service.CreatePrescriptionInput{
		VisitID: id.VisitID(visitID),
		Notes:   req.Notes,
	}
	if req.PrescribedBy != "" {
		staffID, err := httputil.ParseUUID(req.PrescribedBy, "prescribed_by")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		in.PrescribedBy = id.StaffID(staffID)
	}
	for _, item := range req.Items {
		medicineID, err := httputil.ParseUUID(item.MedicineID, "medicine_id")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		in.Items = append(in.Items, service.PrescriptionItemInput{
			MedicineID: id.MedicineID(medicineID),
			Quantity:   item.Quantity,
			Dosage:     item.Dosage,
			Duration:   item.Duration,
		})
	}
	p, err := h.service.CreatePrescription(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) getPrescription(w http.ResponseWriter, r *http.Request) {
	prescriptionID, err := httputil.PathUUID(r, "prescriptionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.GetPrescription(r.Context(), id.PrescriptionID(prescriptionID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) listPrescriptions(w http.ResponseWriter, r *http.Request) {
	visitID, err := httputil.PathUUID(r, "visitID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	prescriptions, err := h.service.ListPrescriptions(r.Context(), id.VisitID(visitID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, prescriptions)
}

type dispenseLineRequest struct {
	MedicineID string `json:"medicine_id"`
	StockID    string `json:"stock_id"`
	Quantity   int    `json:"quantity"`
}

type dispenseRequest struct {
	Lines []dispenseLineRequest `json:"lines"`
}

func (h *Handler) dispense(w http.ResponseWriter, r *http.Request) {
	prescriptionID, err := httputil.PathUUID(r, "prescriptionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[dispenseRequest](w, r)
	if !ok {
		return
	}
	lines := make([]service.DispenseLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		medicineID, err := httputil.ParseUUID(line.MedicineID, "medicine_id")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		stockID, err := httputil.ParseUUID(line.StockID, "stock_id")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		lines = append(lines, service.DispenseLine{
			MedicineID: id.MedicineID(medicineID),
			StockID:    id.StockID(stockID),
			Quantity:   line.Quantity,
		})
	}
	p, err := h.service.DispenseItems(r.Context(), id.PrescriptionID(prescriptionID), lines)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) verifyCollection(w http.ResponseWriter, r *http.Request) {
	prescriptionID, err := httputil.PathUUID(r, "prescriptionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[otpRequest](w, r)
	if !ok {
		return
	}
	p, err := h.service.VerifyCollection(r.Context(), id.PrescriptionID(prescriptionID), req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// ---- pharmacy ----

type addMedicineRequest struct {
	Name        string `json:"name"`
	GenericName string `json:"generic_name"`
	Code        string `json:"code"`
	Form        string `json:"form"`
	Strength    string `json:"strength"`
	UnitPrice   string `json:"unit_price"`
}

func (h *Handler) addMedicine(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[addMedicineRequest](w, r)
	if !ok {
		return
	}
	price, err := httputil.ParseDecimal(req.UnitPrice, "unit_price")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.AddMedicine(r.Context(), service.AddMedicineInput{
		Name:        req.Name,
		GenericName: req.GenericName,
		Code:        req.Code,
		Form:        req.Form,
		Strength:    req.Strength,
		UnitPrice:   price,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

type addStockRequest struct {
	HospitalID   string `json:"hospital_id"`
	MedicineID   string `json:"medicine_id"`
	BatchNumber  string `json:"batch_number"`
	Quantity     int    `json:"quantity"`
	MinimumLevel int    `json:"minimum_level"`
	MaximumLevel int    `json:"maximum_level"`
	ExpiryDate   string `json:"expiry_date"`
}

func (h *Handler) addStock(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[addStockRequest](w, r)
	if !ok {
		return
	}
	hospitalID, err := httputil.ParseUUID(req.HospitalID, "hospital_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	medicineID, err := httputil.ParseUUID(req.MedicineID, "medicine_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expiry_date must look like 2006-01-02"))
		return
	}
	st, err := h.service.AddStock(r.Context(), service.AddStockInput{
		HospitalID:   id.HospitalID(hospitalID),
		MedicineID:   id.MedicineID(medicineID),
		BatchNumber:  req.BatchNumber,
		Quantity:     req.Quantity,
		MinimumLevel: req.MinimumLevel,
		MaximumLevel: req.MaximumLevel,
		ExpiryDate:   expiry,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, st)
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	stockID, err := httputil.PathUUID(r, "stockID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[restockRequest](w, r)
	if !ok {
		return
	}
	st, err := h.service.Restock(r.Context(), id.StockID(stockID), req.Quantity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := httputil.ParseUUID(r.URL.Query().Get("hospital_id"), "hospital_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stock, err := h.service.ListStock(r.Context(), id.HospitalID(hospitalID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stock)
}
