// Package pagination holds the page/per-page request parameters and the paged
// result envelope shared by every list endpoint.
package pagination

const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

// Params selects a page of a filtered result set.
type Params struct {
	Page    int
	PerPage int
}

// Normalize clamps out-of-range values instead of erroring; list endpoints
// should always render something.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PerPage
}

// Page is one page of results plus enough metadata to render pagination.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	PageNumber int `json:"page"`
	PerPage    int `json:"per_page"`
}

// NewPage slices a full, already-filtered result set. Memory stores use this;
// SQL stores page in the query and fill the struct directly.
func NewPage[T any](all []T, params Params) Page[T] {
	params = params.Normalize()
	start := params.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + params.PerPage
	if end > len(all) {
		end = len(all)
	}
	items := make([]T, end-start)
	copy(items, all[start:end])
	return Page[T]{
		Items:      items,
		Total:      len(all),
		PageNumber: params.Page,
		PerPage:    params.PerPage,
	}
}
