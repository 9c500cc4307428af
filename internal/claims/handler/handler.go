// Package handler exposes the claims engine over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"shacore/internal/claims/models"
	"shacore/internal/claims/service"
	id "shacore/pkg/domain"
	"shacore/pkg/platform/httputil"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/claims", func(r chi.Router) {
		r.Post("/", h.submit)
		r.Get("/", h.list)
		r.Post("/bulk-approve", h.bulkApprove)
		r.Post("/bulk-reject", h.bulkReject)
		r.Get("/{claimID}", h.get)
		r.Post("/{claimID}/start-review", h.startReview)
		r.Post("/{claimID}/approve", h.approve)
		r.Post("/{claimID}/reject", h.reject)
		r.Post("/{claimID}/pay", h.markPaid)
	})
}

type submitRequest struct {
	VisitID       string `json:"visit_id"`
	Type          string `json:"type"`
	AmountClaimed string `json:"amount_claimed"`
	Description   string `json:"description"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[submitRequest](w, r)
	if !ok {
		return
	}
	visitID, err := httputil.ParseUUID(req.VisitID, "visit_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	amount, err := httputil.ParseDecimal(req.AmountClaimed, "amount_claimed")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Submit(r.Context(), service.SubmitInput{
		VisitID:       id.VisitID(visitID),
		Type:          models.Type(req.Type),
		AmountClaimed: amount,
		Description:   req.Description,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	claimID, err := httputil.PathUUID(r, "claimID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), id.ClaimID(claimID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter models.ClaimFilter
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
	filter.Status = models.Status(q.Get("status"))
	filter.Type = models.Type(q.Get("type"))
	page, err := h.service.List(r.Context(), filter, httputil.PageParams(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) startReview(w http.ResponseWriter, r *http.Request) {
	claimID, err := httputil.PathUUID(r, "claimID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.StartReview(r.Context(), id.ClaimID(claimID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

type approveRequest struct {
	AmountApproved string `json:"amount_approved"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	claimID, err := httputil.PathUUID(r, "claimID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[approveRequest](w, r)
	if !ok {
		return
	}
	amount, err := httputil.ParseDecimal(req.AmountApproved, "amount_approved")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Approve(r.Context(), id.ClaimID(claimID), amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	claimID, err := httputil.PathUUID(r, "claimID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[rejectRequest](w, r)
	if !ok {
		return
	}
	c, err := h.service.Reject(r.Context(), id.ClaimID(claimID), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	claimID, err := httputil.PathUUID(r, "claimID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.MarkPaid(r.Context(), id.ClaimID(claimID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

type bulkRequest struct {
	ClaimIDs []string `json:"claim_ids"`
	Reason   string   `json:"reason,omitempty"`
}

type bulkResponse struct {
	Transitioned int `json:"transitioned"`
}

func (h *Handler) bulkApprove(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[bulkRequest](w, r)
	if !ok {
		return
	}
	claimIDs, err := parseClaimIDs(req.ClaimIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	count, err := h.service.BulkApprove(r.Context(), claimIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bulkResponse{Transitioned: count})
}

func (h *Handler) bulkReject(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[bulkRequest](w, r)
	if !ok {
		return
	}
	claimIDs, err := parseClaimIDs(req.ClaimIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	count, err := h.service.BulkReject(r.Context(), claimIDs, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bulkResponse{Transitioned: count})
}

func parseClaimIDs(raw []string) ([]id.ClaimID, error) {
	claimIDs := make([]id.ClaimID, 0, len(raw))
	for _, s := range raw {
		u, err := httputil.ParseUUID(s, "claim_ids")
		if err != nil {
			return nil, err
		}
		claimIDs = append(claimIDs, id.ClaimID(u))
	}
	return claimIDs, nil
}
