package query

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"conversation-analytics/backend/pkg/errors"
)

// MinSearchLength is the minimum trimmed length of a free-text search term
const MinSearchLength = 2

// Limits bounds the page size accepted from callers
type Limits struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultLimits are used when no configuration is supplied
var DefaultLimits = Limits{DefaultLimit: 20, MaxLimit: 100}

// Page is a validated 1-based page request
type Page struct {
	Number int
	Limit  int
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// ParsePage validates raw page/limit query values. Empty values take
// defaults; non-integers, values below 1 and pages whose offset overflows
// are rejected; limits above the maximum are clamped.
func ParsePage(rawPage, rawLimit string, limits Limits) (Page, error) {
	page, err := parsePositive(rawPage, 1, "page")
	if err != nil {
		return Page{}, err
	}
	limit, err := parsePositive(rawLimit, limits.DefaultLimit, "limit")
	if err != nil {
		return Page{}, err
	}
	if limits.MaxLimit > 0 && limit > limits.MaxLimit {
		limit = limits.MaxLimit
	}
	if page-1 > math.MaxInt/limit {
		return Page{}, errors.BadRequestWithDetails(errors.CodeInvalidPagination,
			"page is out of range", map[string]any{"page": rawPage})
	}
	return Page{Number: page, Limit: limit}, nil
}

// ParseLimit validates a standalone limit value with a default and a ceiling.
func ParseLimit(raw string, def, max int) (int, error) {
	limit, err := parsePositive(raw, def, "limit")
	if err != nil {
		return 0, err
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit, nil
}

// ParseOffset validates a non-negative offset, defaulting to zero.
func ParseOffset(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.BadRequestWithDetails(errors.CodeInvalidPagination,
			"offset must be a non-negative integer", map[string]any{"offset": raw})
	}
	return n, nil
}

func parsePositive(raw string, def int, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.BadRequestWithDetails(errors.CodeInvalidPagination,
			field+" must be a positive integer", map[string]any{field: raw})
	}
	return n, nil
}

// SearchTerm validates a required free-text term.
func SearchTerm(raw string) (string, error) {
	term := strings.TrimSpace(raw)
	if utf8.RuneCountInString(term) < MinSearchLength {
		return "", errors.BadRequestWithDetails(errors.CodeSearchTooShort,
			"Search term must be at least 2 characters", map[string]any{"min_length": MinSearchLength})
	}
	return term, nil
}

// OptionalSearch validates a search filter that may be omitted. A blank
// value means no filter.
func OptionalSearch(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return SearchTerm(raw)
}

// Pagination describes where a page sits within the full filtered set
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

// NewPagination derives page counts from a total
func NewPagination(p Page, total int64) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Pagination{
		Page:    p.Number,
		Limit:   p.Limit,
		Total:   total,
		Pages:   pages,
		HasNext: p.Number < pages,
		HasPrev: p.Number > 1,
	}
}

// Result is a page of items plus its pagination
type Result[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// MapResult converts the items of a result, keeping its pagination
func MapResult[T, U any](r Result[T], fn func(T) U) Result[U] {
	out := make([]U, len(r.Items))
	for i, item := range r.Items {
		out[i] = fn(item)
	}
	return Result[U]{Items: out, Pagination: r.Pagination}
}
