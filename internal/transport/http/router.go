// Package httpapi assembles the HTTP surface: the middleware chain, the
// feature handlers and the operational endpoints.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shacore/internal/audit"
	claimsHandler "shacore/internal/claims/handler"
	ledgerHandler "shacore/internal/ledger/handler"
	"shacore/internal/notify"
	"shacore/internal/platform/metrics"
	"shacore/internal/platform/middleware"
	registryHandler "shacore/internal/registry/handler"
	"shacore/internal/stats"
	visitHandler "shacore/internal/visit/handler"
	"shacore/pkg/platform/httputil"
)

// Deps carries everything the router mounts. Stats is optional; it is only
// available when the server runs against Postgres.
type Deps struct {
	Registry *registryHandler.Handler
	Ledger   *ledgerHandler.Handler
	Visits   *visitHandler.Handler
	Claims   *claimsHandler.Handler
	Recorder *audit.Recorder
	Notify   *notify.Service
	Stats    *stats.Service

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewRouter wires the middleware chain and mounts every feature under
// /api/v1. Health and metrics sit outside the API prefix.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Actor)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		deps.Registry.Register(r)
		deps.Ledger.Register(r)
		deps.Visits.Register(r)
		deps.Claims.Register(r)

		admin := &adminHandler{recorder: deps.Recorder, notify: deps.Notify, stats: deps.Stats}
		admin.register(r)
	})
	return r
}
