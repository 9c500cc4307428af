// Package handler exposes the registry over HTTP: members, employers,
// hospitals and staff. Handlers decode, delegate and encode; all rules live
// in the service.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"shacore/internal/registry/models"
	"shacore/internal/registry/service"
	id "shacore/pkg/domain"
	"shacore/pkg/platform/httputil"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// Register mounts the registry routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/members", func(r chi.Router) {
		r.Post("/", h.registerMember)
		r.Get("/", h.listMembers)
		r.Get("/by-number/{shaNumber}", h.getMemberByNumber)
		r.Get("/{memberID}", h.getMember)
		r.Post("/{memberID}/approve", h.approveMember)
		r.Post("/{memberID}/suspend", h.suspendMember)
		r.Post("/{memberID}/reactivate", h.reactivateMember)
	})
	r.Route("/employers", func(r chi.Router) {
		r.Post("/", h.registerEmployer)
		r.Get("/", h.listEmployers)
		r.Get("/{employerID}", h.getEmployer)
		r.Post("/{employerID}/approve", h.approveEmployer)
		r.Post("/{employerID}/suspend", h.suspendEmployer)
		r.Post("/{employerID}/reactivate", h.reactivateEmployer)
		r.Post("/{employerID}/employees", h.linkEmployment)
		r.Get("/{employerID}/employees", h.listEmployments)
		r.Post("/{employerID}/employees/{memberID}/end", h.endEmployment)
	})
	r.Route("/hospitals", func(r chi.Router) {
		r.Post("/", h.registerHospital)
		r.Get("/", h.listHospitals)
		r.Get("/{hospitalID}", h.getHospital)
		r.Post("/{hospitalID}/approve", h.approveHospital)
		r.Post("/{hospitalID}/suspend", h.suspendHospital)
		r.Post("/{hospitalID}/reactivate", h.reactivateHospital)
		r.Post("/{hospitalID}/staff", h.addStaff)
		r.Get("/{hospitalID}/staff", h.listStaff)
	})
}

// ---- members ----

type registerMemberRequest struct {
	FirstName   string `json:"first_name"`
	MiddleName  string `json:"middle_name"`
	LastName    string `json:"last_name"`
	NationalID  string `json:"national_id"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	CountyCode  string `json:"county_code"`
	SubCounty   string `json:"subcounty"`
}

func (h *Handler) registerMember(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerMemberRequest](w, r)
	if !ok {
		return
	}
	m, err := h.service.RegisterMember(r.Context(), service.RegisterMemberInput{
		FirstName:   req.FirstName,
		MiddleName:  req.MiddleName,
		LastName:    req.LastName,
		NationalID:  req.NationalID,
		DateOfBirth: req.DateOfBirth,
		Gender:      models.Gender(req.Gender),
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		Address:     req.Address,
		CountyCode:  req.CountyCode,
		SubCounty:   req.SubCounty,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := httputil.PathUUID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.GetMember(r.Context(), id.MemberID(memberID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) getMemberByNumber(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetMemberBySHANumber(r.Context(), chi.URLParam(r, "shaNumber"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.MemberFilter{
		Status:     models.Status(q.Get("status")),
		CountyCode: q.Get("county"),
		Search:     q.Get("search"),
	}
	page, err := h.service.ListMembers(r.Context(), filter, httputil.PageParams(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) approveMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := httputil.PathUUID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.ApproveMember(r.Context(), id.MemberID(memberID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

type suspendRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) suspendMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := httputil.PathUUID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[suspendRequest](w, r)
	if !ok {
		return
	}
	m, err := h.service.SuspendMember(r.Context(), id.MemberID(memberID), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) reactivateMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := httputil.PathUUID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.ReactivateMember(r.Context(), id.MemberID(memberID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// ---- employers ----

type registerEmployerRequest struct {
	CompanyName        string `json:"company_name"`
	RegistrationNumber string `json:"registration_number"`
	TaxPIN             string `json:"tax_pin"`
	Industry           string `json:"industry"`
	Email              string `json:"email"`
	PhoneNumber        string `json:"phone_number"`
	CountyCode         string `json:"county_code"`
	ContactPersonName  string `json:"contact_person_name"`
	ContactPersonPhone string `json:"contact_person_phone"`
}

func (h *Handler) registerEmployer(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerEmployerRequest](w, r)
	if !ok {
		return
	}
	e, err := h.service.RegisterEmployer(r.Context(), service.RegisterEmployerInput{
		CompanyName:        req.CompanyName,
		RegistrationNumber: req.RegistrationNumber,
		TaxPIN:             req.TaxPIN,
		Industry:           req.Industry,
		Email:              req.Email,
		PhoneNumber:        req.PhoneNumber,
		CountyCode:         req.CountyCode,
		ContactPersonName:  req.ContactPersonName,
		ContactPersonPhone: req.ContactPersonPhone,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) getEmployer(w http.ResponseWriter, r *http.Request) {
	employerID, err := httputil.PathUUID(r, "employerID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.GetEmployer(r.Context(), id.EmployerID(employerID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) listEmployers(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	page, err := h.service.ListEmployers(r.Context(), status, httputil.PageParams(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) approveEmployer(w http.ResponseWriter, r *http.Request) {
	employerID, err := httputil.PathUUID(r, "employerID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.ApproveEmployer(r.Context(), id.EmployerID(employerID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) suspendEmployer(w http.ResponseWriter, r *http.Request) {
	employerID, err := httputil.PathUUID(r, "employerID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[suspendRequest](w, r)
	if !ok {
		return
	}
	e, err := h.service.SuspendEmployer(r.Context(), id.EmployerID(employerID), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) reactivateEmployer(w http.ResponseWriter, r *http.Request) {
	employerID, err := httputil.PathUUID(r, "employerID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.ReactivateEmployer(r.Context(), id.EmployerID(employerID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

type linkEmploymentRequest struct {
	MemberID         string `json:"member_id"`
	EmployeeNumber   string `json:"employee_number"`
	Department       string `json:"department"`
	JobTitle         string `json:"job_title"`
	MonthlySalary    string `json:"monthly_salary"`
	ContributionRate string `json:"contribution_rate"`
	DateJoined       string `json:"date_joined"`
}

func (h *Handler) linkEmployment(w http.ResponseWriter, r *http.Request) {
	employerID, err := httputil.PathUUID(r, "employerID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[linkEmploymentRequest](w, r)
	if !ok {
		return
	}
	memberID, err := httputil.ParseUUID(req.MemberID, "member_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	salary, err := httputil.ParseDecimal(req.MonthlySalary, "monthly_salary")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rate := decimal.Zero
	if req.ContributionRate != "" {
		if rate, err = httputil.ParseDecimal(req.ContributionRate, "contribution_rate"); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	emp, err := h.service.LinkEmployment(r.Context(), service.LinkEmploymentInput{
		EmployerID:       id.EmployerID(employerID),
		MemberID:         id.MemberID(memberID),
		EmployeeNumber:   req.EmployeeNumber,
		Department:       req.Department,
		JobTitle:         req.JobTitle,
		MonthlySalary:    salary,
		ContributionRate: rate,
		DateJoined:       req.DateJoined,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, emp)
}

func (h *Handler) endEmployment(w http.ResponseWriter, r *http.Request) {
	employerID, err := httputil.PathUUID(r, "employerID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	memberID, err := httputil.PathUUID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	emp, err := h.service.EndEmployment(r.Context(), id.EmployerID(employerID), id.MemberID(memberID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, emp)
}

func (h *Handler) listEmployments(w http.ResponseWriter, r *http.Request) {
	employerID, err := httputil.PathUUID(r, "employerID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	employments, err := h.service.ListEmployments(r.Context(), id.EmployerID(employerID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, employments)
}

// ---- hospitals ----

type registerHospitalRequest struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number"`
	Type               string `json:"type"`
	Level              int    `json:"level"`
	LicenseNumber      string `json:"license_number"`
	LicenseExpiryDate  string `json:"license_expiry_date"`
	Email              string `json:"email"`
	PhoneNumber        string `json:"phone_number"`
	CountyCode         string `json:"county_code"`
	SubCounty          string `json:"subcounty"`
}

func (h *Handler) registerHospital(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerHospitalRequest](w, r)
	if !ok {
		return
	}
	hospital, err := h.service.RegisterHospital(r.Context(), service.RegisterHospitalInput{
		Name:               req.Name,
		RegistrationNumber: req.RegistrationNumber,
		Type:               models.HospitalType(req.Type),
		Level:              req.Level,
		LicenseNumber:      req.LicenseNumber,
		LicenseExpiryDate:  req.LicenseExpiryDate,
		Email:              req.Email,
		PhoneNumber:        req.PhoneNumber,
		CountyCode:         req.CountyCode,
		SubCounty:          req.SubCounty,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, hospital)
}

func (h *Handler) getHospital(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := httputil.PathUUID(r, "hospitalID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hospital, err := h.service.GetHospital(r.Context(), id.HospitalID(hospitalID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, hospital)
}

func (h *Handler) listHospitals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.HospitalFilter{
		Status:     models.Status(q.Get("status")),
		Type:       models.HospitalType(q.Get("type")),
		CountyCode: q.Get("county"),
		Search:     q.Get("search"),
	}
	page, err := h.service.ListHospitals(r.Context(), filter, httputil.PageParams(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) approveHospital(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := httputil.PathUUID(r, "hospitalID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hospital, err := h.service.ApproveHospital(r.Context(), id.HospitalID(hospitalID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, hospital)
}

func (h *Handler) suspendHospital(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := httputil.PathUUID(r, "hospitalID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[suspendRequest](w, r)
	if !ok {
		return
	}
	hospital, err := h.service.SuspendHospital(r.Context(), id.HospitalID(hospitalID), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, hospital)
}

func (h *Handler) reactivateHospital(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := httputil.PathUUID(r, "hospitalID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hospital, err := h.service.ReactivateHospital(r.Context(), id.HospitalID(hospitalID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, hospital)
}

type addStaffRequest struct {
	StaffNumber   string `json:"staff_number"`
	FullName      string `json:"full_name"`
	Role          string `json:"role"`
	LicenseNumber string `json:"license_number"`
}

func (h *Handler) addStaff(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := httputil.PathUUID(r, "hospitalID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[addStaffRequest](w, r)
	if !ok {
		return
	}
	staff, err := h.service.AddStaff(r.Context(), service.AddStaffInput{
		HospitalID:    id.HospitalID(hospitalID),
		StaffNumber:   req.StaffNumber,
		FullName:      req.FullName,
		Role:          models.StaffRole(req.Role),
		LicenseNumber: req.LicenseNumber,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, staff)
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := httputil.PathUUID(r, "hospitalID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	staff, err := h.service.ListStaff(r.Context(), id.HospitalID(hospitalID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, staff)
}
