package services

import (
	"mercado/internal/models"
	"mercado/internal/query"
)

// Page is one page of a list query.
type Page[T any] struct {
	Items      []T
	Total      int64
	Pagination query.Pagination
}

// TotalPages returns the number of pages for the whole result set.
func (p Page[T]) TotalPages() int {
	return p.Pagination.TotalPages(p.Total)
}

func parseRoleFilter(s string) (any, error) {
	return models.ParseRole(s)
}

func parseStatusFilter(s string) (any, error) {
	return models.ParseOrderStatus(s)
}

// createdAtSortKeys lets clients sort on creation time under any of the
// names used by the JSON payloads.
var createdAtSortKeys = []string{"fecha", "createdat", "created_at"}

func withCreatedAt(columns map[string]string, jsonName string) map[string]string {
	columns[jsonName] = "created_at"
	for _, k := range createdAtSortKeys {
		columns[k] = "created_at"
	}
	return columns
}

var productSchema = query.Schema{
	Columns: withCreatedAt(map[string]string{
		"nombre":      "name",
		"descripcion": "description",
		"precio":      "price",
		"stock":       "stock",
	}, "fecha_creacion"),
	Searchable: []string{"nombre", "descripcion"},
	Equality: []query.EqualityField{
		{Param: "vendedor", Column: "seller_id"},
		{Param: "categoria", Column: "category_id"},
	},
	Sets:  []query.SetField{{Param: "cat", Column: "category_id"}},
	Range: &query.RangeField{MinParam: "min", MaxParam: "max", Column: "price"},
}

var categorySchema = query.Schema{
	Columns: withCreatedAt(map[string]string{
		"nombre":      "name",
		"descripcion": "description",
	}, "fecha_creacion"),
	Searchable: []string{"nombre", "descripcion"},
}

var userSchema = query.Schema{
	Columns: withCreatedAt(map[string]string{
		"nombre": "name",
		"email":  "email",
		"rol":    "role",
	}, "fecha_registro"),
	Searchable: []string{"nombre", "email"},
	Equality:   []query.EqualityField{{Param: "rol", Column: "role", Parse: parseRoleFilter}},
}

var orderSchema = query.Schema{
	Columns: withCreatedAt(map[string]string{
		"total":           "total",
		"estado":          "status",
		"direccion_envio": "shipping_address",
		"notas":           "notes",
	}, "fecha_orden"),
	Searchable: []string{"direccion_envio", "notas"},
	Equality: []query.EqualityField{
		{Param: "estado", Column: "status", Parse: parseStatusFilter},
		{Param: "comprador", Column: "buyer_id"},
	},
	Range: &query.RangeField{MinParam: "min", MaxParam: "max", Column: "total"},
}
