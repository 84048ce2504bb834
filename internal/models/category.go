package models

import "time"

// Category groups products.
type Category struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"nombre" gorm:"type:varchar(50);not null"`
	Description string    `json:"descripcion" gorm:"type:text;not null"`
	IconURL     string    `json:"imagen_icono" gorm:"type:varchar(500)"`
	CreatedAt   time.Time `json:"fecha_creacion" gorm:"index"`
}
