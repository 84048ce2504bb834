package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a listing published by a seller.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string          `json:"nombre" gorm:"type:varchar(150);not null"`
	Description string          `json:"descripcion" gorm:"type:text;not null"`
	Price       decimal.Decimal `json:"precio" gorm:"type:numeric(12,2);not null;index"`
	Stock       int             `json:"stock" gorm:"not null;default:0"`
	ImageURL    string          `json:"imagen_url" gorm:"type:varchar(500)"`
	SellerID    string          `json:"vendedor_id" gorm:"type:varchar(36);not null;index"`
	CategoryID  string          `json:"categoria_id" gorm:"type:varchar(36);not null;index"`
	CreatedAt   time.Time       `json:"fecha_creacion" gorm:"index"`
}
