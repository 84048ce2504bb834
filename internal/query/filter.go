// Package query turns untrusted list parameters into validated filter, sort
// and pagination values and applies them to GORM queries.
package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"mercado/internal/apperror"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Search parameter names. Both are accepted.
const (
	SearchParam      = "q"
	SearchParamAlias = "busqueda"
)

// Values holds raw query string parameters.
type Values map[string]string

// Condition is an equality predicate.
type Condition struct {
	Column string
	Value  any
}

// SetCondition matches any of Values.
type SetCondition struct {
	Column string
	Values []string
}

// RangeCondition bounds a numeric column. Nil bounds are not applied.
type RangeCondition struct {
	Column string
	Min    *float64
	Max    *float64
}

// SearchCondition is a case-insensitive substring match OR-ed across Columns.
type SearchCondition struct {
	Term    string
	Columns []string
}

// Filter is the predicate part of a list query. The zero value matches everything.
type Filter struct {
	Equals []Condition
	Sets   []SetCondition
	Ranges []RangeCondition
	Search *SearchCondition
}

// EqualityField maps a query parameter to an equality predicate. Parse, when
// set, validates and converts the raw value.
type EqualityField struct {
	Param  string
	Column string
	Parse  func(string) (any, error)
}

// SetField maps a comma separated query parameter to an IN predicate.
type SetField struct {
	Param  string
	Column string
}

// RangeField maps a pair of query parameters to a numeric range.
type RangeField struct {
	MinParam string
	MaxParam string
	Column   string
}

// Schema describes what a resource allows clients to filter and sort on.
type Schema struct {
	Columns    map[string]string // public field name -> column
	Searchable []string          // public field names
	Equality   []EqualityField
	Sets       []SetField
	Range      *RangeField
}

func (s Schema) column(field string) string {
	if col, ok := s.Columns[field]; ok {
		return col
	}
	return field
}

// Where adds an equality predicate.
func (f *Filter) Where(column string, value any) {
	f.Equals = append(f.Equals, Condition{Column: column, Value: value})
}

// IsEmpty reports whether the filter has no constraints.
func (f Filter) IsEmpty() bool {
	return len(f.Equals) == 0 && len(f.Sets) == 0 && len(f.Ranges) == 0 && f.Search == nil
}

// BuildFilter converts raw parameters into a Filter. Absent parameters add no
// constraint. Malformed values are rejected with a validation error listing
// every offending parameter.
func BuildFilter(raw Values, schema Schema) (Filter, error) {
	var (
		f      Filter
		fields []apperror.FieldError
	)

	for _, eq := range schema.Equality {
		value := strings.TrimSpace(raw[eq.Param])
		if value == "" {
			continue
		}
		var parsed any = value
		if eq.Parse != nil {
			v, err := eq.Parse(value)
			if err != nil {
				fields = append(fields, apperror.FieldError{Field: eq.Param, Message: err.Error()})
				continue
			}
			parsed = v
		}
		f.Where(eq.Column, parsed)
	}

	for _, set := range schema.Sets {
		values := ParseList(raw[set.Param])
		if len(values) == 0 {
			continue
		}
		f.Sets = append(f.Sets, SetCondition{Column: set.Column, Values: values})
	}

	if r := schema.Range; r != nil {
		rc := RangeCondition{Column: r.Column}
		var err error
		if rc.Min, err = parseBound(raw[r.MinParam]); err != nil {
			fields = append(fields, apperror.FieldError{Field: r.MinParam, Message: err.Error()})
		}
		if rc.Max, err = parseBound(raw[r.MaxParam]); err != nil {
			fields = append(fields, apperror.FieldError{Field: r.MaxParam, Message: err.Error()})
		}
		if rc.Min != nil && rc.Max != nil && *rc.Min > *rc.Max {
			fields = append(fields, apperror.FieldError{
				Field:   r.MinParam,
				Message: fmt.Sprintf("must not be greater than %s", r.MaxParam),
			})
		}
		if rc.Min != nil || rc.Max != nil {
			f.Ranges = append(f.Ranges, rc)
		}
	}

	term := strings.TrimSpace(raw[SearchParam])
	if term == "" {
		term = strings.TrimSpace(raw[SearchParamAlias])
	}
	if term != "" && len(schema.Searchable) > 0 {
		columns := make([]string, 0, len(schema.Searchable))
		for _, field := range schema.Searchable {
			columns = append(columns, schema.column(field))
		}
		f.Search = &SearchCondition{Term: term, Columns: columns}
	}

	if len(fields) > 0 {
		return Filter{}, apperror.Validation("invalid filter parameters", fields...)
	}
	return f, nil
}

// ParseList splits a comma separated value, trimming blanks.
func ParseList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBound(value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("must be a number, got %q", value)
	}
	return &n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Apply adds the filter's predicates to db.
func (f Filter) Apply(db *gorm.DB) *gorm.DB {
	for _, c := range f.Equals {
		db = db.Where(clause.Eq{Column: clause.Column{Name: c.Column}, Value: c.Value})
	}
	for _, s := range f.Sets {
		values := make([]any, len(s.Values))
		for i, v := range s.Values {
			values[i] = v
		}
		db = db.Where(clause.IN{Column: clause.Column{Name: s.Column}, Values: values})
	}
	for _, r := range f.Ranges {
		if r.Min != nil {
			db = db.Where(clause.Gte{Column: clause.Column{Name: r.Column}, Value: *r.Min})
		}
		if r.Max != nil {
			db = db.Where(clause.Lte{Column: clause.Column{Name: r.Column}, Value: *r.Max})
		}
	}
	if f.Search != nil && len(f.Search.Columns) > 0 {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(f.Search.Term)) + "%"
		exprs := make([]clause.Expression, 0, len(f.Search.Columns))
		for _, col := range f.Search.Columns {
			exprs = append(exprs, clause.Expr{
				SQL:  `LOWER(?) LIKE ? ESCAPE '\'`,
				Vars: []any{clause.Column{Name: col}, pattern},
			})
		}
		db = db.Where(clause.Or(exprs...))
	}
	return db
}
