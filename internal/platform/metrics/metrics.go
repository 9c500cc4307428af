package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the platform. A single struct
// threaded through constructors keeps registration in one place.
type Metrics struct {
	MembersRegistered     prometheus.Counter
	MembersApproved       prometheus.Counter
	ContributionsRecorded prometheus.Counter
	DuplicateContribution prometheus.Counter
	VisitsCheckedIn       prometheus.Counter
	OTPVerifications      *prometheus.CounterVec
	ItemsDispensed        prometheus.Counter
	ClaimsSubmitted       prometheus.Counter
	ClaimsReviewed        *prometheus.CounterVec
	AuditEvents           prometheus.Counter
	NotificationsQueued   prometheus.Counter
	RequestDuration       *prometheus.HistogramVec
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		MembersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sha_members_registered_total",
			Help: "Members registered (pending approval).",
		}),
		MembersApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sha_members_approved_total",
			Help: "Members approved to active status.",
		}),
		ContributionsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sha_contributions_recorded_total",
			Help: "Contribution payments accepted by the ledger.",
		}),
		DuplicateContribution: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sha_contributions_duplicate_total",
			Help: "Contribution submissions rejected by the period uniqueness constraint.",
		}),
		VisitsCheckedIn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sha_visits_checked_in_total",
			Help: "Hospital visits checked in after OTP verification.",
		}),
		OTPVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sha_otp_verifications_total",
			Help: "OTP verification attempts by outcome.",
		}, []string{"outcome"}),
		ItemsDispensed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sha_prescription_items_dispensed_total",
			Help: "Prescription item dispense mutations applied.",
		}),
		ClaimsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sha_claims_submitted_total",
			Help: "Claims submitted by hospitals.",
		}),
		ClaimsReviewed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sha_claims_reviewed_total",
			Help: "Claims reviewed by decision.",
		}, []string{"decision"}),
		AuditEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sha_audit_events_total",
			Help: "Audit entries recorded.",
		}),
		NotificationsQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sha_notifications_queued_total",
			Help: "Notifications enqueued for external delivery.",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sha_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
