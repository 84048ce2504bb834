package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
//
//	pendiente -> confirmada -> enviada -> entregada
//	pendiente -> cancelada
type OrderStatus string

const (
	StatusPending   OrderStatus = "pendiente"
	StatusConfirmed OrderStatus = "confirmada"
	StatusShipped   OrderStatus = "enviada"
	StatusDelivered OrderStatus = "entregada"
	StatusCancelled OrderStatus = "cancelada"
)

// OrderStatuses lists every valid status.
var OrderStatuses = []OrderStatus{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusShipped
	case StatusShipped:
		return next == StatusDelivered
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsMutable reports whether address, notes and status may still be edited.
func (s OrderStatus) IsMutable() bool {
	return s == StatusPending
}

// ParseOrderStatus converts a raw string into an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid order status %q", s)
	}
	return st, nil
}

// Scan implements sql.Scanner.
func (s *OrderStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into OrderStatus", src)
	}
	parsed, err := ParseOrderStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s OrderStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid order status %q", string(s))
	}
	return string(s), nil
}

// OrderItem represents a single line within an order.
type OrderItem struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	OrderID   string          `json:"-" gorm:"type:varchar(36);not null;index"`
	Position  int             `json:"-" gorm:"not null"`
	ProductID string          `json:"producto_id" gorm:"type:varchar(36);not null;index"`
	Quantity  int             `json:"cantidad" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"precio_unitario" gorm:"type:numeric(12,2);not null"` // price at the time of order
	Subtotal  decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null"`
}

// Order represents a buyer's purchase.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BuyerID         string          `json:"comprador_id" gorm:"type:varchar(36);not null;index"`
	Items           []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Total           decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null"`
	Status          OrderStatus     `json:"estado" gorm:"type:varchar(20);not null;index"`
	ShippingAddress string          `json:"direccion_envio" gorm:"type:varchar(500)"`
	Notes           string          `json:"notas" gorm:"type:text"`
	CreatedAt       time.Time       `json:"fecha_orden" gorm:"index"`
	UpdatedAt       time.Time       `json:"fecha_actualizacion"`
}
