package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"mercado/internal/apperror"

	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Pagination parameter names.
const (
	PageParam  = "pagina"
	LimitParam = "limite"
)

// Pagination is a page window. Skip is derived from Page and Limit.
type Pagination struct {
	Page  int
	Limit int
	Skip  int
}

// NewPagination applies defaults to non-positive values, clamps limit to
// MaxLimit and caps page so that Skip cannot overflow.
func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page > maxPage(limit) {
		page = maxPage(limit)
	}
	return Pagination{Page: page, Limit: limit, Skip: (page - 1) * limit}
}

// ParsePagination parses raw page and limit strings. Empty values take the
// defaults; anything that is not a positive integer is rejected.
func ParsePagination(page, limit string) (Pagination, error) {
	var fields []apperror.FieldError

	p, err := parsePositive(page)
	if err != nil {
		fields = append(fields, apperror.FieldError{Field: PageParam, Message: err.Error()})
	}
	l, err := parsePositive(limit)
	if err != nil {
		fields = append(fields, apperror.FieldError{Field: LimitParam, Message: err.Error()})
	}
	if len(fields) == 0 {
		window := NewPagination(p, l)
		if p > window.Page {
			fields = append(fields, apperror.FieldError{
				Field:   PageParam,
				Message: fmt.Sprintf("must be at most %d", window.Page),
			})
		}
	}
	if len(fields) > 0 {
		return Pagination{}, apperror.Validation("invalid pagination parameters", fields...)
	}
	return NewPagination(p, l), nil
}

// maxPage is the largest page whose offset fits in an int.
func maxPage(limit int) int {
	return math.MaxInt / limit
}

func parsePositive(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer, got %q", value)
	}
	return n, nil
}

// TotalPages returns how many pages hold total records.
func (p Pagination) TotalPages(total int64) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// Apply adds OFFSET and LIMIT to db.
func (p Pagination) Apply(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Skip).Limit(p.Limit)
}
