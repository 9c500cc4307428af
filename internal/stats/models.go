// Package stats derives the read-side aggregates behind the admin dashboard
// and the financial report. Everything here is computed from the operational
// tables; nothing is stored.
package stats

import (
	"github.com/shopspring/decimal"

	id "shacore/pkg/domain"
)

// StatusCounts is a count-per-status breakdown with its total.
type StatusCounts struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// ClaimAggregate pairs a claim count with the money it represents. Sum is
// the claimed amount except for approved and paid claims, where it is the
// approved amount.
type ClaimAggregate struct {
	Count int64           `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}

// Dashboard is the admin landing-page snapshot.
type Dashboard struct {
	Members   StatusCounts `json:"members"`
	Employers StatusCounts `json:"employers"`
	Hospitals StatusCounts `json:"hospitals"`
	Visits    StatusCounts `json:"visits"`

	Claims             map[string]ClaimAggregate `json:"claims"`
	ContributionsTotal decimal.Decimal           `json:"contributions_total"`

	LowStockBatches     int64 `json:"low_stock_batches"`
	ExpiredStockBatches int64 `json:"expired_stock_batches"`
}

// FinancialReport breaks contribution income down for one period.
type FinancialReport struct {
	Period      id.Period                  `json:"period"`
	PeriodTotal decimal.Decimal            `json:"period_total"`
	GrandTotal  decimal.Decimal            `json:"grand_total"`
	ByType      map[string]decimal.Decimal `json:"by_type"`
}
