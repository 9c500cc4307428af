package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"shacore/internal/audit"
	"shacore/internal/notify"
	"shacore/internal/stats"
	id "shacore/pkg/domain"
	"shacore/pkg/platform/httputil"
)

// adminHandler serves the read-side admin surfaces: the audit trail, the
// notification inbox and the dashboard aggregates.
type adminHandler struct {
	recorder *audit.Recorder
	notify   *notify.Service
	stats    *stats.Service
}

func (h *adminHandler) register(r chi.Router) {
	r.Get("/audit-logs", h.listAuditLogs)
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/recipient/{recipient}", h.listNotifications)
		r.Post("/{notificationID}/read", h.markNotificationRead)
	})
	if h.stats != nil {
		r.Get("/stats/dashboard", h.dashboard)
		r.Get("/stats/financials/{period}", h.financialReport)
	}
}

func (h *adminHandler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Actor:       q.Get("actor"),
		Action:      audit.ActionKind(q.Get("action")),
		SubjectType: q.Get("subject_type"),
		SubjectID:   q.Get("subject_id"),
	}
	page, err := h.recorder.List(r.Context(), filter, httputil.PageParams(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *adminHandler) listNotifications(w http.ResponseWriter, r *http.Request) {
	recipient := chi.URLParam(r, "recipient")
	page, err := h.notify.ListForRecipient(r.Context(), recipient, httputil.PageParams(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *adminHandler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	notificationID, err := httputil.PathUUID(r, "notificationID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.notify.MarkRead(r.Context(), id.NotificationID(notificationID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

func (h *adminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.stats.Dashboard(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *adminHandler) financialReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.stats.FinancialReport(r.Context(), chi.URLParam(r, "period"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
