package catalogue

import (
	"cmp"
	"slices"
	"strings"
)

// DefaultPageSize is the number of items returned per catalogue page
const DefaultPageSize = 30

// Sort names an ordering of the catalogue
type Sort string

const (
	SortLatest     Sort = "latest"
	SortEarliest   Sort = "earliest"
	SortRatingDesc Sort = "rating_desc"
	SortRatingAsc  Sort = "rating_asc"
)

// QueryParams holds the parameters of a catalogue page request
type QueryParams struct {
	Type     MediaType
	Sort     Sort
	Search   string
	Page     int
	PageSize int
}

// Normalize fills in defaults. Pages below 1 are treated as the first page.
func (p *QueryParams) Normalize() {
	if p.Type == "" {
		p.Type = MediaTypeMovie
	}
	if p.Sort == "" {
		p.Sort = SortLatest
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
}

// Pagination describes where a page sits in the filtered catalogue
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// QueryResult is one page of the catalogue. Pagination is nil when the
// catalogue could not be read.
type QueryResult struct {
	Items      []Item      `json:"movies"`
	Pagination *Pagination `json:"pagination"`
}

// Query searches, filters, sorts and paginates items. The input slice is not modified.
func Query(items []Item, params QueryParams) QueryResult {
	params.Normalize()

	needle := strings.ToLower(params.Search)
	filtered := make([]Item, 0, len(items))
	for i := range items {
		if needle != "" && !strings.Contains(strings.ToLower(items[i].DisplayTitle()), needle) {
			continue
		}
		if items[i].ResolvedType() != params.Type {
			continue
		}
		filtered = append(filtered, items[i])
	}

	SortItems(filtered, params.Sort)

	total := len(filtered)
	totalPages := (total + params.PageSize - 1) / params.PageSize

	// Compare page numbers, not offsets: offsets of huge pages overflow
	page := []Item{}
	if params.Page <= totalPages {
		start := (params.Page - 1) * params.PageSize
		page = filtered[start:min(start+params.PageSize, total)]
	}

	return QueryResult{
		Items: page,
		Pagination: &Pagination{
			CurrentPage: params.Page,
			TotalPages:  totalPages,
			TotalItems:  total,
			HasNextPage: params.Page < totalPages,
			HasPrevPage: params.Page > 1,
		},
	}
}

// SortItems orders items in place. The sort is stable; unknown keys sort latest first.
func SortItems(items []Item, sort Sort) {
	switch sort {
	case SortRatingDesc:
		slices.SortStableFunc(items, func(a, b Item) int {
			return cmp.Compare(b.Rating, a.Rating)
		})
	case SortRatingAsc:
		slices.SortStableFunc(items, func(a, b Item) int {
			return cmp.Compare(a.Rating, b.Rating)
		})
	case SortEarliest:
		slices.SortStableFunc(items, func(a, b Item) int {
			return cmp.Compare(a.sortKey(), b.sortKey())
		})
	default:
		slices.SortStableFunc(items, func(a, b Item) int {
			return cmp.Compare(b.sortKey(), a.sortKey())
		})
	}
}
