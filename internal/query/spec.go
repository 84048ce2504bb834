package query

import (
	"errors"

	"mercado/internal/apperror"

	"gorm.io/gorm"
)

// SortParam is the query parameter holding the sort specification.
const SortParam = "orden"

// Spec is a complete list query: predicate, ordering and page window.
type Spec struct {
	Filter Filter
	Sort   []SortField
	Page   Pagination
}

// Parse builds a Spec from raw parameters. All problems are reported together
// in a single validation error.
func Parse(raw Values, schema Schema) (Spec, error) {
	var (
		spec   Spec
		fields []apperror.FieldError
		err    error
	)

	if spec.Filter, err = BuildFilter(raw, schema); err != nil {
		fields = append(fields, fieldsOf(err)...)
	}
	if spec.Sort, err = BuildSort(raw[SortParam], schema.Columns); err != nil {
		fields = append(fields, fieldsOf(err)...)
	}
	if spec.Page, err = ParsePagination(raw[PageParam], raw[LimitParam]); err != nil {
		fields = append(fields, fieldsOf(err)...)
	}

	if len(fields) > 0 {
		return Spec{}, apperror.Validation("invalid query parameters", fields...)
	}
	return spec, nil
}

func fieldsOf(err error) []apperror.FieldError {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return []apperror.FieldError{{Field: "query", Message: err.Error()}}
}

// Apply adds filter, ordering and pagination to db.
func (s Spec) Apply(db *gorm.DB) *gorm.DB {
	db = s.Filter.Apply(db)
	db = ApplySort(db, s.Sort)
	return s.Page.Apply(db)
}
