// Package handler exposes the contribution ledger over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shacore/internal/ledger/models"
	"shacore/internal/ledger/service"
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
	r.Route("/contributions", func(r chi.Router) {
		r.Post("/", h.recordPayment)
		r.Get("/member/{memberID}", h.listForMember)
		r.Get("/member/{memberID}/total", h.totalForMember)
		r.Get("/member/{memberID}/period/{period}", h.getForPeriod)
		r.Get("/period/{period}/total", h.totalForPeriod)
		r.Get("/{contributionID}", h.get)
		r.Post("/{contributionID}/confirm", h.confirm)
		r.Post("/{contributionID}/fail", h.fail)
		r.Post("/{contributionID}/refund", h.refund)
	})
}

type recordPaymentRequest struct {
	MemberID   string `json:"member_id"`
	EmployerID string `json:"employer_id,omitempty"`
	Type       string `json:"type"`
	Method     string `json:"method"`
	Amount     string `json:"amount"`
	Period     string `json:"period"`
	Reference  string `json:"reference"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[recordPaymentRequest](w, r)
	if !ok {
		return
	}
	memberID, err := httputil.ParseUUID(req.MemberID, "member_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	amount, err := httputil.ParseDecimal(req.Amount, "amount")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	in := service.RecordPaymentInput{
		MemberID:  id.MemberID(memberID),
		Type:      models.Type(req.Type),
		Method:    models.Method(req.Method),
		Amount:    amount,
		Period:    req.Period,
		Reference: req.Reference,
	}
	if req.EmployerID != "" {
		employerID, err := httputil.ParseUUID(req.EmployerID, "employer_id")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		eid := id.EmployerID(employerID)
		in.EmployerID = &eid
	}
	c, err := h.service.RecordPayment(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	contributionID, err := httputil.PathUUID(r, "contributionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), id.ContributionID(contributionID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ConfirmPayment)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.FailPayment)
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	contributionID, err := httputil.PathUUID(r, "contributionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[refundRequest](w, r)
	if !ok {
		return
	}
	c, err := h.service.Refund(r.Context(), id.ContributionID(contributionID), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, id.ContributionID) (*models.Contribution, error)) {
	contributionID, err := httputil.PathUUID(r, "contributionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := apply(r.Context(), id.ContributionID(contributionID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) listForMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := httputil.PathUUID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.ListForMember(r.Context(), id.MemberID(memberID), httputil.PageParams(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) getForPeriod(w http.ResponseWriter, r *http.Request) {
	memberID, err := httputil.PathUUID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.GetForPeriod(r.Context(), id.MemberID(memberID), chi.URLParam(r, "period"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) totalForMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := httputil.PathUUID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	total, err := h.service.TotalForMember(r.Context(), id.MemberID(memberID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"total": total.String()})
}

func (h *Handler) totalForPeriod(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	total, err := h.service.TotalForPeriod(r.Context(), period)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"period": period, "total": total.String()})
}
