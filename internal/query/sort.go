package query

import (
	"fmt"
	"strings"

	"mercado/internal/apperror"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// PrimaryKey is the column every public "id" sort token maps to.
	PrimaryKey = "id"
	// DefaultSortColumn orders listings newest first when no sort is given.
	DefaultSortColumn = "created_at"
)

// SortField is one ORDER BY term.
type SortField struct {
	Column string
	Desc   bool
}

// DefaultSort returns the ordering used when the client sends none.
func DefaultSort() []SortField {
	return []SortField{{Column: DefaultSortColumn, Desc: true}}
}

// BuildSort parses "field:direction,field:direction". Directions other than
// "asc" sort descending. "id" maps to the primary key. Fields not present in
// columns are rejected so that only whitelisted columns reach ORDER BY.
func BuildSort(spec string, columns map[string]string) ([]SortField, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return DefaultSort(), nil
	}

	var (
		out    []SortField
		fields []apperror.FieldError
		seen   = make(map[string]bool)
	)
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		name, direction, _ := strings.Cut(token, ":")
		name = strings.ToLower(strings.TrimSpace(name))

		var column string
		if name == "id" {
			column = PrimaryKey
		} else if col, ok := columns[name]; ok {
			column = col
		} else {
			fields = append(fields, apperror.FieldError{Field: "orden", Message: fmt.Sprintf("cannot sort by %q", name)})
			continue
		}

		if seen[column] {
			continue
		}
		seen[column] = true
		out = append(out, SortField{
			Column: column,
			Desc:   strings.ToLower(strings.TrimSpace(direction)) != "asc",
		})
	}

	if len(fields) > 0 {
		return nil, apperror.Validation("invalid sort parameter", fields...)
	}
	if len(out) == 0 {
		return DefaultSort(), nil
	}
	return out, nil
}

// ApplySort adds ORDER BY terms to db, followed by the primary key so that
// pagination is stable across equal sort keys.
func ApplySort(db *gorm.DB, fields []SortField) *gorm.DB {
	hasPK := false
	for _, f := range fields {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: f.Column}, Desc: f.Desc})
		hasPK = hasPK || f.Column == PrimaryKey
	}
	if !hasPK {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: PrimaryKey}})
	}
	return db
}
