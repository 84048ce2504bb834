package models

import "time"

// User represents a marketplace account.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name         string     `json:"nombre" gorm:"type:varchar(100);not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Password     string     `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	Role         Role       `json:"rol" gorm:"type:varchar(20);not null;index"`
	ResetCode    *string    `json:"-" gorm:"type:varchar(255)"` // bcrypt hash of the recovery code
	ResetExpires *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"fecha_registro"`
	UpdatedAt    time.Time  `json:"fecha_actualizacion"`
}

// HasPendingReset reports whether a recovery code is stored and still valid at now.
func (u *User) HasPendingReset(now time.Time) bool {
	return u.ResetCode != nil && u.ResetExpires != nil && now.Before(*u.ResetExpires)
}
